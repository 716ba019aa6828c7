package scraper

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/chi-landmarks/internal/event"
	"golang.org/x/net/html"
)

const (
	// SpiderName prefixes every meeting ID from this page.
	SpiderName = "chi_landmark_commission"
	// AgencyName is the department that publishes the page.
	AgencyName = "Chicago Department of Planning and Development"
	// MeetingName is the name given to every extracted meeting.
	MeetingName = "Commission on Chicago Landmarks"

	descriptionMarker = "The Commission on Chicago Landmarks"
	scheduleMarker    = "Meeting Schedule"
	headingTag        = "h3"
)

var (
	// ErrNoYear is returned when a schedule heading has no four-digit year.
	ErrNoYear = errors.New("no year in schedule heading")
	// ErrNoDatePattern is returned when meeting text has no "<month> <day>".
	ErrNoDatePattern = errors.New("meeting text does not match month and day")
	// ErrInvalidDate is returned when month, day and year do not form a date.
	ErrInvalidDate = errors.New("invalid meeting date")
)

var (
	yearPattern  = regexp.MustCompile(`(\d{4})`)
	startPattern = regexp.MustCompile(`(\w+)\.?\s(\d+)`)
)

// Meetings start at 12:45 according to the published minutes.
var meetingClock = event.Clock{Hour: 12, Minute: 45}

var cityHall = event.Location{
	Neighborhood: "",
	Name:         "City Hall",
	Address:      "121 N. LaSalle St., Room 201-A",
}

// Extractor turns the commission page into meeting records.
type Extractor struct {
	// Now supplies the clock used for status inference.
	Now func() time.Time
	// Location is the time zone meetings are held in.
	Location *time.Location
}

// NewExtractor creates an Extractor that infers statuses in loc.
func NewExtractor(loc *time.Location) *Extractor {
	if loc == nil {
		loc = time.UTC
	}
	return &Extractor{Now: time.Now, Location: loc}
}

// ParseEvents parses the page in r and collects every meeting.
// Meetings extracted before a malformed date are discarded with the error.
func (x *Extractor) ParseEvents(r io.Reader, pageURL string) ([]*event.Event, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	events := make([]*event.Event, 0)
	for evt, err := range x.Meetings(doc, pageURL) {
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, nil
}

// Meetings yields one record per meeting date, column by column in document
// order. The sequence stops after yielding the first error.
func (x *Extractor) Meetings(doc *goquery.Document, pageURL string) iter.Seq2[*event.Event, error] {
	return func(yield func(*event.Event, error) bool) {
		base, err := baseURL(doc, pageURL)
		if err != nil {
			yield(nil, err)
			return
		}

		description := ParseDescription(doc)
		idx := newDocIndex(doc)

		for _, column := range meetingColumns(idx) {
			year := yearContext(idx, column)
			for _, fragment := range FormatMeetings(meetingTexts(column)) {
				evt, err := x.newMeeting(fragment, year, description, column, base, pageURL)
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(evt, nil) {
					return
				}
			}
		}
	}
}

func (x *Extractor) newMeeting(fragment, year, description string, column *html.Node, base *url.URL, pageURL string) (*event.Event, error) {
	start, err := parseStart(fragment, year)
	if err != nil {
		return nil, err
	}

	evt := &event.Event{
		Type:           event.TypeEvent,
		Name:           MeetingName,
		Description:    description,
		Classification: event.Commission,
		Start:          start,
		End:            event.Point{Date: start.Date},
		AllDay:         false,
		Location:       cityHall,
		Sources:        []event.Link{{URL: pageURL}},
		Documents:      parseDocuments(column, start.Date, base),
	}
	evt.ID = event.GenerateID(SpiderName, evt)
	evt.Status = event.GenerateStatus(evt, "", x.now())
	return evt, nil
}

func (x *Extractor) now() time.Time {
	now := time.Now
	if x.Now != nil {
		now = x.Now
	}
	loc := x.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

// ParseDescription joins the text of the paragraphs introducing the
// commission. It returns "" when the page has no such paragraph.
func ParseDescription(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		n := p.Get(0)
		// only the paragraph's leading text is checked for the marker
		if !strings.Contains(firstOwnText(n), descriptionMarker) {
			return
		}
		for _, t := range descendantTexts(n) {
			if t = strings.TrimSpace(t); t != "" {
				parts = append(parts, t)
			}
		}
	})
	return strings.Join(parts, " ")
}

// meetingColumns returns the table cells whose nearest preceding heading is a
// meeting schedule heading.
func meetingColumns(idx *docIndex) []*html.Node {
	var columns []*html.Node
	for _, td := range idx.elements("td") {
		h := idx.preceding(td, headingTag)
		if h != nil && anyContains(ownTexts(h), scheduleMarker) {
			columns = append(columns, td)
		}
	}
	return columns
}

// yearContext returns the first four-digit run in the text of the heading
// before column, or "" when there is none.
func yearContext(idx *docIndex, column *html.Node) string {
	h := idx.preceding(column, headingTag)
	if h == nil {
		return ""
	}
	for _, t := range ownTexts(h) {
		if m := yearPattern.FindStringSubmatch(t); m != nil {
			return m[1]
		}
	}
	return ""
}

// meetingTexts returns the non-blank text directly inside the cell and inside
// its direct <p> children, in document order. A few years nest dates in <p>.
func meetingTexts(column *html.Node) []string {
	var texts []string
	for c := column.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				texts = append(texts, c.Data)
			}
		case c.Type == html.ElementNode && c.Data == "p":
			for _, t := range ownTexts(c) {
				if strings.TrimSpace(t) != "" {
					texts = append(texts, t)
				}
			}
		}
	}
	return texts
}

// FormatMeetings replaces non-breaking spaces, trims each fragment and drops
// the empty ones. Order is preserved.
func FormatMeetings(meetings []string) []string {
	out := make([]string, 0, len(meetings))
	for _, m := range meetings {
		m = strings.TrimSpace(strings.ReplaceAll(m, "\u00a0", " "))
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// parseStart reads "<month>[.] <day>" from a meeting fragment and combines it
// with year. Trailing text after the day is ignored.
func parseStart(fragment, year string) (event.Point, error) {
	m := startPattern.FindStringSubmatch(strings.TrimSpace(fragment))
	if m == nil {
		return event.Point{}, fmt.Errorf("%w: %q", ErrNoDatePattern, fragment)
	}
	if year == "" {
		return event.Point{}, fmt.Errorf("%w: meeting %q", ErrNoYear, fragment)
	}

	month := parseMonth(m[1])
	if month == 0 {
		return event.Point{}, fmt.Errorf("%w: unknown month %q in %q", ErrInvalidDate, m[1], fragment)
	}
	day, err := strconv.Atoi(m[2])
	if err != nil {
		return event.Point{}, fmt.Errorf("%w: day %q in %q", ErrInvalidDate, m[2], fragment)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return event.Point{}, fmt.Errorf("%w: year %q", ErrInvalidDate, year)
	}

	date, err := event.NewDate(y, month, day)
	if err != nil {
		return event.Point{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	clock := meetingClock
	return event.Point{Date: date, Time: &clock}, nil
}

// parseMonth converts a month name or abbreviation to time.Month, or 0.
func parseMonth(name string) time.Month {
	name = strings.ToLower(strings.TrimSpace(name))

	months := map[string]time.Month{
		"jan": time.January, "january": time.January,
		"feb": time.February, "february": time.February,
		"mar": time.March, "march": time.March,
		"apr": time.April, "april": time.April,
		"may": time.May,
		"jun": time.June, "june": time.June,
		"jul": time.July, "july": time.July,
		"aug": time.August, "august": time.August,
		"sep": time.September, "sept": time.September, "september": time.September,
		"oct": time.October, "october": time.October,
		"nov": time.November, "november": time.November,
		"dec": time.December, "december": time.December,
	}

	return months[name]
}

// parseDocuments returns the links in column whose title names the month of
// date. A meeting with no matching links gets a single empty Link.
func parseDocuments(column *html.Node, date event.Date, base *url.URL) []event.Link {
	month := date.Month.String()

	var docs []event.Link
	goquery.NewDocumentFromNode(column).Find("a").Each(func(_ int, a *goquery.Selection) {
		title, ok := a.Attr("title")
		if !ok || !strings.Contains(title, month) {
			return
		}
		href, _ := a.Attr("href")
		docs = append(docs, event.Link{
			URL:  resolveURL(base, href),
			Note: strings.TrimSpace(firstOwnText(a.Get(0))),
		})
	})

	if len(docs) == 0 {
		return []event.Link{{}}
	}
	return docs
}

// baseURL returns the URL relative links resolve against: the page URL,
// overridden by a <base href> when present.
func baseURL(doc *goquery.Document, pageURL string) (*url.URL, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page URL: %w", err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := page.Parse(strings.TrimSpace(href)); err == nil {
			return b, nil
		}
	}
	return page, nil
}

func resolveURL(base *url.URL, href string) string {
	ref, err := base.Parse(strings.TrimSpace(href))
	if err != nil {
		return base.String()
	}
	return ref.String()
}
