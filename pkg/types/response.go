package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// PageEnvelope wraps a cursor-paginated list.
type PageEnvelope struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
