package sources

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Kind distinguishes job-board sources from catalog sources.
type Kind string

const (
	KindJobs    Kind = "jobs"
	KindCatalog Kind = "catalog"
)

// Candidates holds the ordered, site-specific selector candidate lists
// for each record field. Order matters: earlier candidates are tried
// first, and the first declared candidate doubles as the unverified
// fallback when none match.
type Candidates struct {
	Container []string
	Title     []string
	Org       []string
	Location  []string
	Price     []string
	Tags      []string
	Link      []string
}

// Unit is one independently crawlable slice of a catalog source, for
// example a geographic region of a government course index.
type Unit struct {
	Code string
	Name string
}

// Source describes everything the pipeline needs to know about one
// scraping target. Sources are data, constructed once at startup and
// injected read-only into the stages.
type Source struct {
	ID      string
	Kind    Kind
	BaseURL string

	// Country is the default country code stamped on records.
	Country string

	// RequiresRender forces the render path regardless of markup content.
	RequiresRender bool

	// WaitSelector is the hint selector the render path waits for.
	WaitSelector string

	// DefaultOrg and DefaultLocation fill records whose pages omit them.
	DefaultOrg      string
	DefaultLocation string

	Candidates Candidates

	// SearchPath and SearchParam drive BuildSearchURL. A SearchPath
	// containing "{keyword}" is path-based; otherwise the keyword goes
	// into the SearchParam query parameter.
	SearchPath  string
	SearchParam string

	// Units lists the crawlable slices of a catalog source.
	Units []Unit

	// UnitPath is a format string producing the index page for a unit code.
	UnitPath string
}

// BuildSearchURL assembles the search URL for a keyword, applying
// optional per-source hints from metadata.
func (s *Source) BuildSearchURL(keyword string, metadata map[string]string) string {
	if strings.Contains(s.SearchPath, "{keyword}") {
		slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(keyword), " ", "-"))
		return s.BaseURL + strings.ReplaceAll(s.SearchPath, "{keyword}", url.PathEscape(slug))
	}

	params := url.Values{}
	params.Set(s.SearchParam, keyword)
	if metadata["remote_only"] == "true" {
		params.Set("remote", "true")
	}
	if lvl := metadata["experience_level"]; lvl != "" {
		params.Set("experience", lvl)
	}
	return s.BaseURL + s.SearchPath + "?" + params.Encode()
}

// UnitURL resolves the index page URL for one unit of a catalog source.
func (s *Source) UnitURL(code string) string {
	return s.BaseURL + fmt.Sprintf(s.UnitPath, code)
}

// Registry holds all configured sources, keyed by ID.
type Registry struct {
	sources map[string]*Source
}

// NewRegistry builds the registry with the built-in sources.
func NewRegistry() *Registry {
	r := &Registry{sources: make(map[string]*Source)}
	for _, s := range builtin() {
		r.sources[s.ID] = s
	}
	return r
}

// Register adds or replaces a source.
func (r *Registry) Register(s *Source) {
	r.sources[s.ID] = s
}

// Get returns the source for an ID.
func (r *Registry) Get(id string) (*Source, bool) {
	s, ok := r.sources[id]
	return s, ok
}

// List returns all sources ordered by ID.
func (r *Registry) List() []*Source {
	out := make([]*Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// builtin declares the shipped source configurations. The selector
// lists come from observing each site's markup; they are candidates,
// not guarantees; the analyzer verifies them per page.
func builtin() []*Source {
	return []*Source{
		{
			ID:              "geekhunter",
			Kind:            KindJobs,
			BaseURL:         "https://www.geekhunter.com.br",
			Country:         "br",
			RequiresRender:  true,
			WaitSelector:    `[data-testid="job-card"]`,
			DefaultOrg:      "Empresa não identificada",
			DefaultLocation: "Brasil",
			SearchPath:      "/vagas",
			SearchParam:     "search",
			Candidates: Candidates{
				Container: []string{
					`[data-testid="job-card"]`,
					`.job-card`,
					`.vaga-card`,
					`a[href*="/vagas/"]`,
				},
				Title:    []string{`h2`, `h3`, `.job-title`, `[data-testid="job-title"]`},
				Org:      []string{`.company`, `.empresa`, `[data-testid="company-name"]`},
				Location: []string{`.location`, `.local`, `[data-testid="location"]`},
				Price:    []string{`.salary`, `.salario`, `[data-testid="salary"]`},
				Tags:     []string{`.tag`, `.skill`, `.tech-stack span`},
				Link:     []string{`a[href*="/vagas/"]`},
			},
		},
		{
			ID:              "vagascombr",
			Kind:            KindJobs,
			BaseURL:         "https://www.vagas.com.br",
			Country:         "br",
			RequiresRender:  true,
			WaitSelector:    `.vaga`,
			DefaultOrg:      "Empresa não identificada",
			DefaultLocation: "Brasil",
			SearchPath:      "/vagas-de-{keyword}",
			Candidates: Candidates{
				Container: []string{
					`.vaga`,
					`.job-listing`,
					`.resultado-item`,
					`a[href*="/vaga/"]`,
				},
				Title:    []string{`h2`, `.titulo`, `.vaga-title`},
				Org:      []string{`.empresa`, `.company`},
				Location: []string{`.local`, `.location`},
				Price:    []string{`.salario`, `.salary`},
				Tags:     []string{`.tag`, `.skill`},
				Link:     []string{`a[href*="/vaga/"]`},
			},
		},
		{
			ID:              "dges",
			Kind:            KindCatalog,
			BaseURL:         "https://www.dges.gov.pt",
			Country:         "pt",
			DefaultOrg:      "Instituição não identificada",
			DefaultLocation: "Portugal",
			SearchPath:      "/guias/pesqcurso.asp",
			SearchParam:     "curso",
			UnitPath:        "/guias/indest.asp?reg=%s",
			Units: []Unit{
				{Code: "11", Name: "Lisboa"},
				{Code: "12", Name: "Centro"},
				{Code: "13", Name: "Norte"},
				{Code: "14", Name: "Alentejo"},
				{Code: "15", Name: "Algarve"},
				{Code: "16", Name: "Açores"},
				{Code: "17", Name: "Madeira"},
			},
			Candidates: Candidates{
				Container: []string{
					`.lin-curso`,
					`table.cursos tr`,
					`a[href*="detcursopi.asp"]`,
				},
				Title:    []string{`.curso-nome`, `td:nth-child(2)`, `b`},
				Org:      []string{`.inst-nome`, `.estabelecimento`},
				Location: []string{`.regiao`, `.local`},
				Tags:     []string{`.grau`, `.nivel`},
				Link:     []string{`a[href*="detcursopi.asp"]`, `a[href*="detestab.asp"]`},
			},
		},
	}
}
