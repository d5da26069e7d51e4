package webserver

import (
	"encoding/json"
	"net/http"
)

// HttpResp is the envelope every API endpoint answers with, success or
// error alike, so clients can always dispatch on the status field.
type HttpResp struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// WriteJSONResponse writes the envelope with the given HTTP status.
func WriteJSONResponse(w http.ResponseWriter, httpStatus int, resp *HttpResp) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// WriteSuccessResponse sends a 200 envelope carrying data.
func WriteSuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	WriteJSONResponse(w, http.StatusOK, &HttpResp{
		Status:  "success",
		Data:    data,
		Message: message,
	})
}

// WriteErrorResponse sends an error envelope with no data payload.
func WriteErrorResponse(w http.ResponseWriter, message string, httpStatus int) {
	WriteJSONResponse(w, httpStatus, &HttpResp{
		Status:  "error",
		Message: message,
	})
}
