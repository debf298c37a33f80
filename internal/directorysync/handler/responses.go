package handler

import (
	"dirsync/internal/directorysync/models"
	audit "dirsync/pkg/platform/audit"
)

type StartResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
}

type StatusResponse struct {
	Running bool              `json:"running"`
	LastRun *models.RunReport `json:"last_run"`
}

type EventsResponse struct {
	Events []audit.Event `json:"events"`
}
