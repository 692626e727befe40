package types

// ApiResponse is the JSON envelope returned by every handler.
type ApiResponse struct {
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Token   string      `json:"token,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Ok builds a success envelope.
func Ok(status int, message string, data interface{}) ApiResponse {
	return ApiResponse{Status: status, Message: message, Data: data}
}

// Err builds an error envelope without a data payload.
func Err(status int, message string) ApiResponse {
	return ApiResponse{Status: status, Message: message}
}
