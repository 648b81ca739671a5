package course

import (
	"fmt"
	"net/url"
	"strings"
)

// Course is one enrolled course as listed on the portal home page
type Course struct {
	// ID is the id query parameter of URL
	ID          string
	URL         string
	DisplayName string
	Code        string
	Name        string
	Files       []File
}

// File is a downloadable item found on a course page
type File struct {
	URL         string
	Week        string
	DisplayName string
	Description string
	Extension   string
	Dir         string
	Path        string
}

// NewCourse builds a Course from a catalog entry. Code and Name come from
// splitting displayName on "-"; names with extra separators keep only the
// first two parts.
func NewCourse(displayName, courseURL string) *Course {
	parts := strings.Split(displayName, "-")

	c := &Course{
		ID:          courseID(courseURL),
		URL:         courseURL,
		DisplayName: displayName,
		Code:        strings.TrimSpace(parts[0]),
	}
	if len(parts) > 1 {
		c.Name = strings.TrimSpace(parts[1])
	}
	return c
}

// String is the course folder name, "[CODE] Name"
func (c *Course) String() string {
	return fmt.Sprintf("[%s] %s", c.Code, c.Name)
}

// FileName is the on-disk base name of f
func (f File) FileName() string {
	return f.DisplayName + "." + f.Extension
}

func courseID(courseURL string) string {
	u, err := url.Parse(courseURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("id")
}
