package entity

// City is the top level of the location hierarchy
type City struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Subdistrict belongs to exactly one city
type Subdistrict struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	CityID int64  `json:"city_id"`
}

// Branch belongs to exactly one subdistrict
type Branch struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SubdistrictID int64  `json:"subdistrict_id"`
}

// LocationChain is the resolved branch -> subdistrict -> city membership
type LocationChain struct {
	BranchID        int64  `json:"branch_id"`
	BranchName      string `json:"branch_name"`
	SubdistrictID   int64  `json:"subdistrict_id"`
	SubdistrictName string `json:"subdistrict_name"`
	CityID          int64  `json:"city_id"`
	CityName        string `json:"city_name"`
}
