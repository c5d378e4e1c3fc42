package compass

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Content types attached to chunks.
const (
	ContentGeneral     = "general"
	ContentUnknown     = "unknown"
	ContentAdmissions  = "admissions"
	ContentFaculty     = "faculty"
	ContentCourses     = "courses"
	ContentResearch    = "research"
	ContentProgramInfo = "program_info"
	ContentSchool      = "school_info"
	ContentDepartment  = "department_info"
	ContentPageSummary = "page_metadata"
	ContentCrawlInfo   = "crawl_metadata"
)

// Metadata describes where a chunk sits in the college.
type Metadata struct {
	School      string
	Department  string
	Level       string
	ContentType string
	Degrees     []string
}

var urlDepartments = []struct {
	pattern string
	name    string
}{
	{"biological-sciences", "Biology"},
	{"computer-science", "Computer Science"},
	{"chemistry", "Chemistry"},
	{"psychology", "Psychology"},
	{"economics", "Economics"},
	{"sociology", "Sociology"},
	{"anthropology", "Anthropology"},
	{"english", "English"},
	{"history", "History"},
	{"philosophy", "Philosophy"},
	{"political-science", "Political Science"},
	{"mathematics-statistics", "Mathematics"},
	{"physics-astronomy", "Physics"},
	{"art-art-history", "Art"},
	{"music", "Music"},
	{"theatre", "Theatre"},
	{"dance", "Dance"},
}

var degreeNames = []string{"BA", "BS", "MA", "MS", "PhD", "MFA", "MSW", "MPH", "DNP", "DPT"}

// ExtractMetadata derives school, department, level and content type from a
// page URL, and the degrees named in its content.
func ExtractMetadata(url, content string) Metadata {
	md := Metadata{ContentType: ContentUnknown}

	switch {
	case strings.Contains(url, "/artsci/"):
		md.School = "Arts and Sciences"
		for _, d := range urlDepartments {
			if strings.Contains(url, d.pattern) {
				md.Department = d.name
				break
			}
		}
	case strings.Contains(url, "school-of-education"):
		md.School = "Education"
	case strings.Contains(url, "school-of-health-professions"):
		md.School = "Health Professions"
	case strings.Contains(url, "nursing"):
		md.School = "Nursing"
	case strings.Contains(url, "social-work"):
		md.School = "Social Work"
	}

	switch {
	case containsAnyOf(url, "undergraduate", "bachelor", "ba-", "bs-"):
		md.Level = "undergraduate"
	case containsAnyOf(url, "graduate", "master", "ma-", "ms-", "phd", "doctoral"):
		md.Level = "graduate"
	}

	switch {
	case strings.Contains(url, "admission"):
		md.ContentType = ContentAdmissions
	case containsAnyOf(url, "faculty", "staff"):
		md.ContentType = ContentFaculty
	case strings.Contains(url, "course"):
		md.ContentType = ContentCourses
	case strings.Contains(url, "research"):
		md.ContentType = ContentResearch
	case containsAnyOf(url, "undergraduate", "graduate", "program"):
		md.ContentType = ContentProgramInfo
	}

	// degree abbreviations are case-sensitive whole words
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(content, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}
	for _, d := range degreeNames {
		if _, ok := words[d]; ok {
			md.Degrees = append(md.Degrees, d)
		}
	}
	return md
}

func containsAnyOf(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ErrUnknownJSON is returned for JSON documents in none of the crawler's
// output shapes.
var ErrUnknownJSON = errors.New("no processable data in json document")

type urlMapping struct {
	Schools     map[string]string `json:"schools"`
	Departments map[string]string `json:"departments"`
	Programs    map[string]string `json:"programs"`
}

type pageSummary struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Programs    []string `json:"programs"`
	Degrees     []string `json:"degrees"`
	Departments []string `json:"departments"`
	Schools     []string `json:"schools"`
	Categories  []string `json:"categories"`
}

type crawlReport struct {
	Metadata struct {
		TotalPages    any `json:"total_pages_crawled"`
		ContentLength any `json:"total_content_length"`
	} `json:"crawl_metadata"`
	Findings struct {
		Schools     any `json:"schools_discovered"`
		Departments any `json:"departments_discovered"`
		Programs    any `json:"programs_discovered"`
	} `json:"findings"`
}

// SplitJSON turns one of the crawler's JSON outputs into chunks: URL maps of
// schools, departments and programs; per-page analytics; or a crawl report.
func SplitJSON(source string, data []byte) ([]Chunk, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", source, err)
	}
	has := func(k string) bool {
		_, ok := keys[k]
		return ok
	}

	var chunks []Chunk
	switch {
	case has("schools") && has("departments"):
		var m urlMapping
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding url map %s: %w", source, err)
		}
		for _, name := range sortedKeys(m.Schools) {
			chunks = append(chunks, Chunk{
				Source:   source,
				URL:      m.Schools[name],
				Text:     fmt.Sprintf("School: %s\nURL: %s\nType: Academic School", name, m.Schools[name]),
				Metadata: Metadata{School: name, ContentType: ContentSchool},
			})
		}
		for _, name := range sortedKeys(m.Departments) {
			chunks = append(chunks, Chunk{
				Source:   source,
				URL:      m.Departments[name],
				Text:     fmt.Sprintf("Department: %s\nURL: %s\nType: Academic Department", name, m.Departments[name]),
				Metadata: Metadata{Department: name, ContentType: ContentDepartment},
			})
		}
		for _, name := range sortedKeys(m.Programs) {
			chunks = append(chunks, Chunk{
				Source:   source,
				URL:      m.Programs[name],
				Text:     fmt.Sprintf("Program: %s\nURL: %s\nType: Academic Program", name, m.Programs[name]),
				Metadata: Metadata{ContentType: ContentProgramInfo},
			})
		}

	case has("pages_data"):
		var pages struct {
			Pages []pageSummary `json:"pages_data"`
		}
		if err := json.Unmarshal(data, &pages); err != nil {
			return nil, fmt.Errorf("decoding page analytics %s: %w", source, err)
		}
		for _, p := range pages.Pages {
			var lines []string
			if p.Title != "" {
				lines = append(lines, "Page Title: "+p.Title)
			}
			if p.URL != "" {
				lines = append(lines, "URL: "+p.URL)
			}
			for _, field := range []struct {
				label  string
				values []string
			}{
				{"Programs", p.Programs},
				{"Degrees", p.Degrees},
				{"Departments", p.Departments},
				{"Schools", p.Schools},
				{"Categories", p.Categories},
			} {
				if len(field.values) > 0 {
					lines = append(lines, field.label+": "+strings.Join(field.values, ", "))
				}
			}
			if len(lines) == 0 {
				continue
			}

			md := Metadata{ContentType: ContentPageSummary, Degrees: p.Degrees}
			if len(p.Schools) > 0 {
				md.School = p.Schools[0]
			}
			if len(p.Departments) > 0 {
				md.Department = p.Departments[0]
			}
			chunks = append(chunks, Chunk{
				Source:   source,
				URL:      p.URL,
				Text:     strings.Join(lines, "\n"),
				Metadata: md,
			})
		}

	case has("crawl_metadata"):
		var r crawlReport
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decoding crawl report %s: %w", source, err)
		}
		text := strings.Join([]string{
			"Crawl Information:",
			"Total pages crawled: " + orUnknown(r.Metadata.TotalPages),
			"Content length: " + orUnknown(r.Metadata.ContentLength) + " characters",
			"Schools discovered: " + orUnknown(r.Findings.Schools),
			"Departments discovered: " + orUnknown(r.Findings.Departments),
			"Programs discovered: " + orUnknown(r.Findings.Programs),
		}, "\n")
		chunks = append(chunks, Chunk{Source: source, Text: text, Metadata: Metadata{ContentType: ContentCrawlInfo}})
	}

	if len(chunks) == 0 {
		return nil, ErrUnknownJSON
	}
	return chunks, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orUnknown(v any) string {
	if v == nil {
		return "Unknown"
	}
	return fmt.Sprint(v)
}
