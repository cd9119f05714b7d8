package xqdto

type StartRequest struct {
	Side      string `json:"side"`
	Networked bool   `json:"networked"`
}

type StartResponse struct {
	State *SessionState `json:"state"`
}

type SelectRequest struct {
	Square string `json:"square"`
}

type SelectResponse struct {
	Transition string        `json:"transition"`
	State      *SessionState `json:"state"`
}

type MoveRequest struct {
	Move string `json:"move"`
}

type MoveResponse struct {
	Captured string        `json:"captured,omitempty"`
	Finished bool          `json:"finished"`
	State    *SessionState `json:"state"`
}

type ErrorResponse struct {
	Error DomainError `json:"error"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}
