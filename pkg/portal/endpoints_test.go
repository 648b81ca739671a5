package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEndpoints(t *testing.T) {
	e, err := NewEndpoints("https://cms.guc.edu.eg/", "/")
	require.NoError(t, err)

	assert.Equal(t, "https://cms.guc.edu.eg", e.RootURL())
	assert.Equal(t, "https://cms.guc.edu.eg/", e.HomeURL())

	_, err = NewEndpoints("cms.guc.edu.eg", "/")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	e, err := NewEndpoints("https://cms.guc.edu.eg", "")
	require.NoError(t, err)

	tests := []struct {
		href string
		want string
	}{
		{"/apps/student/CourseViewStn?id=450&sid=65", "https://cms.guc.edu.eg/apps/student/CourseViewStn?id=450&sid=65"},
		{"/Uploads/450/Lecture1.pdf", "https://cms.guc.edu.eg/Uploads/450/Lecture1.pdf"},
		{"https://files.example.com/a.zip", "https://files.example.com/a.zip"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Resolve(tt.href))
	}
}
