package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Catalog is the on-disk JSON form of one university's course catalog
type Catalog struct {
	University UniversityRecord `json:"university"`
	Faculties  []FacultyRecord  `json:"faculties"`
	Courses    []CourseRecord   `json:"courses"`
}

// UniversityRecord describes the catalog's owning university
type UniversityRecord struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Country    string `json:"country,omitempty"`
	Region     string `json:"region,omitempty"`
	WebsiteURL string `json:"website_url,omitempty"`
}

// FacultyRecord describes one faculty
type FacultyRecord struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	WebsiteURL string `json:"website_url,omitempty"`
}

// CourseRecord describes one course. FacultyCode refers to a faculty in
// the same catalog or one already stored for the university.
type CourseRecord struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	FacultyCode string   `json:"faculty_code,omitempty"`
	Description string   `json:"description,omitempty"`
	CreditHours *float64 `json:"credit_hours,omitempty"`
	Level       string   `json:"level,omitempty"`
	WebsiteURL  string   `json:"website_url,omitempty"`
}

// DecodeCatalog reads a catalog document from r and normalizes its codes
func DecodeCatalog(r io.Reader) (*Catalog, error) {
	var catalog Catalog
	dec := json.NewDecoder(r)
	if err := dec.Decode(&catalog); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	catalog.University.Code = strings.TrimSpace(catalog.University.Code)
	catalog.University.Name = strings.TrimSpace(catalog.University.Name)
	if catalog.University.Code == "" || catalog.University.Name == "" {
		return nil, fmt.Errorf("%w: university code and name are required", ErrInvalidCatalog)
	}

	for i := range catalog.Faculties {
		catalog.Faculties[i].Code = strings.TrimSpace(catalog.Faculties[i].Code)
		catalog.Faculties[i].Name = strings.TrimSpace(catalog.Faculties[i].Name)
	}
	for i := range catalog.Courses {
		c := &catalog.Courses[i]
		c.Code = strings.TrimSpace(c.Code)
		c.Name = strings.TrimSpace(c.Name)
		c.FacultyCode = strings.TrimSpace(c.FacultyCode)
	}

	return &catalog, nil
}
