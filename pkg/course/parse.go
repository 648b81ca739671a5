package course

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"cmsdl/pkg/catalog"
	errs "cmsdl/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

const (
	// CourseLinkPrefix starts the href of every course page link
	CourseLinkPrefix = "/apps/student/CourseViewStn?id"

	maxNameBytes = 255
)

// Resolver turns hrefs found on portal pages into absolute URLs
type Resolver interface {
	Resolve(href string) string
}

var (
	courseRowPattern = regexp.MustCompile(`\(\|([^|]*)\|\)([^(]*)\(`)
	weekPattern      = regexp.MustCompile(`Week:\s*(\d{4}-\d{2}-\d{2})`)
	ordinalPattern   = regexp.MustCompile(`^\s*\d+\s*-\s*`)
)

// ParseCatalog extracts the ordered (display name, URL) pairs from the
// portal home page. Course names come from the rows of table#tableID
// between the header and the trailer row; URLs come from every course page
// link in document order. The two lists are paired by position.
func ParseCatalog(doc *goquery.Document, tableID string, res Resolver) ([]catalog.Entry, error) {
	table := doc.Find("table#" + tableID).First()
	if table.Length() == 0 {
		return nil, errs.NewParseError("", "", fmt.Sprintf("courses table %q not found", tableID))
	}

	// pager rows nest their own table
	rows := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})
	var names []string
	for i := 1; i < rows.Length()-1; i++ {
		text := strings.TrimSpace(rows.Eq(i).Text())
		m := courseRowPattern.FindStringSubmatch(text)
		if m == nil {
			return nil, errs.NewParseError("", "", fmt.Sprintf("unexpected course row %q", text))
		}
		names = append(names, strings.TrimSpace(m[1])+" - "+strings.TrimSpace(m[2]))
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if strings.HasPrefix(href, CourseLinkPrefix) {
			links = append(links, res.Resolve(href))
		}
	})

	if len(names) != len(links) {
		return nil, errs.NewParseError("", "",
			fmt.Sprintf("found %d course names but %d course links", len(names), len(links)))
	}

	entries := make([]catalog.Entry, len(names))
	for i := range names {
		entries[i] = catalog.Entry{Name: names[i], URL: links[i]}
	}
	return entries, nil
}

// ParseFiles builds one File per content card on a course page. Cards
// without a bold title are not course content and are skipped. Any other
// malformed card fails the whole course.
func ParseFiles(doc *goquery.Document, c *Course, res Resolver, downloadsDir string) ([]File, error) {
	courseDir := filepath.Join(downloadsDir, c.String())

	var files []File
	var parseErr error
	doc.Find(".card-body").EachWithBreak(func(i int, card *goquery.Selection) bool {
		if card.Find("strong").Length() == 0 {
			return true
		}

		f, err := parseCard(card, res, courseDir)
		if err != nil {
			parseErr = errs.NewParseError(c.DisplayName, c.URL, fmt.Sprintf("card %d: %v", i, err))
			return false
		}
		files = append(files, f)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return files, nil
}

func parseCard(card *goquery.Selection, res Resolver, courseDir string) (File, error) {
	fileURL, err := extractFileURL(card, res)
	if err != nil {
		return File{}, err
	}
	week, err := extractWeekLabel(card)
	if err != nil {
		return File{}, err
	}
	ext, err := extractExtension(fileURL)
	if err != nil {
		return File{}, err
	}

	f := File{
		URL:         fileURL,
		Week:        week,
		DisplayName: SanitizeName(extractFileTitle(card)),
		Description: extractDescription(card),
		Extension:   ext,
		Dir:         filepath.Join(courseDir, week),
	}
	f.Path = filepath.Join(f.Dir, f.FileName())
	return f, nil
}

func extractFileURL(card *goquery.Selection, res Resolver) (string, error) {
	href, ok := card.Find("a[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", errors.New("card has no download link")
	}
	return res.Resolve(strings.TrimSpace(href)), nil
}

// extractWeekLabel finds the nearest enclosing section headed "Week: YYYY-MM-DD"
// and returns its date as "W MM-DD".
func extractWeekLabel(card *goquery.Selection) (string, error) {
	for parent := card.Parent(); parent.Length() > 0; parent = parent.Parent() {
		var date string
		parent.Find("h2").EachWithBreak(func(_ int, h *goquery.Selection) bool {
			if m := weekPattern.FindStringSubmatch(h.Text()); m != nil {
				date = m[1]
				return false
			}
			return true
		})
		if date == "" {
			continue
		}

		t, err := time.Parse("2006-01-02", date)
		if err != nil {
			return "", fmt.Errorf("invalid week date %q: %w", date, err)
		}
		return t.Format("W 01-02"), nil
	}
	return "", errors.New("no week heading above card")
}

func extractFileTitle(card *goquery.Selection) string {
	return stripOrdinal(card.Find("strong").First().Text())
}

func extractDescription(card *goquery.Selection) string {
	return stripOrdinal(card.Find("div").First().Text())
}

// extractExtension returns the text after the last dot of the URL's final path segment
func extractExtension(fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("invalid file URL %q: %w", fileURL, err)
	}

	name := path.Base(u.Path)
	dot := strings.LastIndex(name, ".")
	if dot < 0 || dot == len(name)-1 {
		return "", fmt.Errorf("file URL %q has no extension", fileURL)
	}
	return name[dot+1:], nil
}

func stripOrdinal(s string) string {
	return strings.TrimSpace(ordinalPattern.ReplaceAllString(strings.TrimSpace(s), ""))
}

// SanitizeName makes name safe to use as a single path component on
// Windows, macOS and Linux.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
			continue
		}
		b.WriteRune(r)
	}

	out := strings.TrimSpace(b.String())
	out = strings.TrimRight(out, " .")

	if len(out) > maxNameBytes {
		cut := maxNameBytes
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = strings.TrimRight(out[:cut], " .")
	}

	if out == "" {
		return "_"
	}
	return out
}
