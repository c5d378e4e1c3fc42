package chatbot

// Health is returned by GET /.
type Health struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	ChatbotReady bool   `json:"chatbot_ready"`
}

// Status is returned by GET /status.
type Status struct {
	Status       string  `json:"status"`
	ChatbotReady bool    `json:"chatbot_ready"`
	Error        *string `json:"error"`
}

// ServiceStatus is the frontend-facing shape of /api/chatbot/status.
type ServiceStatus struct {
	Status        string `json:"status"`
	PythonWorking bool   `json:"pythonWorking"`
	Message       string `json:"message"`
	Service       string `json:"service"`
}

// ResetResult acknowledges a memory reset.
type ResetResult struct {
	Message string `json:"message"`
}
