package respond

import (
	"encoding/json"
	"net/http"

	"github.com/wb-go/wbf/zlog"
)

type errorBody struct {
	Error string `json:"error"`
}

type resultBody struct {
	Result any `json:"result"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to encode response")
	}
}

// OK writes a 200 response wrapping v.
func OK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, resultBody{Result: v})
}

// Created writes a 201 response wrapping v.
func Created(w http.ResponseWriter, v any) {
	JSON(w, http.StatusCreated, resultBody{Result: v})
}

// Fail writes an error response.
func Fail(w http.ResponseWriter, status int, err error) {
	JSON(w, status, errorBody{Error: err.Error()})
}
