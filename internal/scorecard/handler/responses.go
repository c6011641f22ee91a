package handler

import (
	"cscexplorer/internal/domain"
	"cscexplorer/internal/scorecard/store"
)

type CollegeResponse struct {
	ID   any    `json:"id"`
	Name string `json:"name"`
}

type CollegesResponse struct {
	College []CollegeResponse `json:"college"`
}

type DataTypeResponse struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Scope string `json:"scope"`
}

type DataTypesResponse struct {
	DataType []DataTypeResponse `json:"data_type"`
}

// ValueResponse is one {college_id, value} datapoint.
type ValueResponse struct {
	CollegeID any `json:"college_id"`
	Value     any `json:"value"`
}

func toCollegesResponse(colleges []store.College) CollegesResponse {
	out := CollegesResponse{College: make([]CollegeResponse, len(colleges))}
	for i, c := range colleges {
		out.College[i] = CollegeResponse{ID: c.ID, Name: c.Name}
	}
	return out
}

func toDataTypesResponse(cats []domain.Category) DataTypesResponse {
	out := DataTypesResponse{DataType: make([]DataTypeResponse, len(cats))}
	for i, c := range cats {
		out.DataType[i] = DataTypeResponse{Name: c.Name, Type: string(c.Type), Scope: string(c.Scope)}
	}
	return out
}

func toValues(pairs []store.Pair) []ValueResponse {
	out := make([]ValueResponse, len(pairs))
	for i, p := range pairs {
		out[i] = ValueResponse{CollegeID: p.CollegeID, Value: p.Value}
	}
	return out
}
