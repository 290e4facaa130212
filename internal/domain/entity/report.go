package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is a periodic sales report filed by a branch user
type Report struct {
	ID              int64               `json:"id"`
	Status          string              `json:"status"`
	Period          string              `json:"period"`
	CreatedBy       int64               `json:"created_by"`
	BranchID        int64               `json:"branch_id"`
	SubdistrictID   int64               `json:"subdistrict_id"`
	CityID          int64               `json:"city_id"`
	BranchName      string              `json:"branch_name"`
	SubdistrictName string              `json:"subdistrict_name"`
	CityName        string              `json:"city_name"`
	RejectionReason string              `json:"rejection_reason,omitempty"`
	Stock           decimal.NullDecimal `json:"stock"`
	Expenses        decimal.NullDecimal `json:"expenses"`
	Income          decimal.NullDecimal `json:"income"`
	Notes           string              `json:"notes,omitempty"`
	Comments        []Comment           `json:"comments"`
	SubmittedAt     *time.Time          `json:"submitted_at,omitempty"`
	ApprovedAt      *time.Time          `json:"approved_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// IsInFlight reports whether the report awaits any level of review
func (r *Report) IsInFlight() bool {
	return IsInFlightStatus(r.Status)
}

// Location returns the report's location triple as a chain
func (r *Report) Location() LocationChain {
	return LocationChain{
		BranchID:        r.BranchID,
		BranchName:      r.BranchName,
		SubdistrictID:   r.SubdistrictID,
		SubdistrictName: r.SubdistrictName,
		CityID:          r.CityID,
		CityName:        r.CityName,
	}
}

// SetLocation copies ids and display names from a resolved chain
func (r *Report) SetLocation(chain LocationChain) {
	r.BranchID = chain.BranchID
	r.BranchName = chain.BranchName
	r.SubdistrictID = chain.SubdistrictID
	r.SubdistrictName = chain.SubdistrictName
	r.CityID = chain.CityID
	r.CityName = chain.CityName
}

// Clone returns a deep copy of the report
func (r *Report) Clone() *Report {
	c := *r
	if r.Comments != nil {
		c.Comments = append([]Comment(nil), r.Comments...)
	}
	if r.SubmittedAt != nil {
		t := *r.SubmittedAt
		c.SubmittedAt = &t
	}
	if r.ApprovedAt != nil {
		t := *r.ApprovedAt
		c.ApprovedAt = &t
	}
	return &c
}

// Comment is an append-only note attached to a report
type Comment struct {
	ID         int64     `json:"id"`
	ReportID   int64     `json:"report_id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
