// Package course turns portal HTML into Course and File values.
//
// ParseCatalog reads the course list from the home page and ParseFiles reads
// the content cards of a single course page. Each File carries the local
// path it will be downloaded to:
//
//	<downloads>/[CODE] Name/W MM-DD/<title>.<ext>
package course
