// Package catalog caches the mapping from course display name to course
// page URL in a JSON file (".courses.json" by default).
//
// The file is a flat object whose key order follows the portal home page:
//
//	{
//	    "CSEN401 - Computer Programming Lab": "https://cms.guc.edu.eg/apps/student/CourseViewStn?id=450&sid=60"
//	}
//
// A present, non-empty file is trusted without any network call. Delete it
// (or run "cmsdl cache clear") to pick up newly enrolled courses.
package catalog
