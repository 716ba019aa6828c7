// Package scraper provides HTTP fetching and HTML parsing for Commission on
// Chicago Landmarks meetings.
//
// The scraper package fetches the commission's page on cityofchicago.org and
// extracts one meeting record per date listed under each yearly "Meeting
// Schedule" heading, together with the agenda and minutes links posted for
// that month. Extraction is page-specific and stops at the first malformed
// date.
package scraper
