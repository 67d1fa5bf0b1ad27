package models

// HealthResponse is returned by the root /health endpoint. Services maps a
// backend component name to its reported state.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// ServiceInfo is returned by the backend's root path.
type ServiceInfo struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Status  string `json:"status"`
}
