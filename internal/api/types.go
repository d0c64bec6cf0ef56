package api

import (
	"github.com/YumeNoTenshi/utilwatch/internal/check"
	"github.com/YumeNoTenshi/utilwatch/internal/report"
)

type RunResponse struct {
	Status string        `json:"status"`
	Data   check.LastRun `json:"data"`
}

type PreviewResponse struct {
	Status    string           `json:"status"`
	Instances int              `json:"instances"`
	Offenders int              `json:"offenders"`
	Subject   string           `json:"subject"`
	Cards     []report.Message `json:"cards"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
