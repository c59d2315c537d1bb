package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/leaguehub/roster-service/middleware"
	"github.com/leaguehub/roster-service/models"
	"github.com/leaguehub/roster-service/services"
)

type jsonResponse map[string]interface{}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case err.Error() == "http: request body too large":
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err) // ошибка программиста: передан не указатель
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

// readOptionalJSON is readJSON for endpoints whose body may be omitted.
func readOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	return readJSON(w, r, dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := writeJSON(w, status, data, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}) {
	env := jsonResponse{"error": message}
	if err := writeJSON(w, status, env, nil); err != nil {
		slog.Error("failed to write error response", slog.String("path", r.URL.Path), slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	message := "the server encountered a problem and could not process your request"
	errorResponse(w, r, http.StatusInternalServerError, message)
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func unauthorizedResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusUnauthorized, message)
}

// kindStatus maps rule-core error kinds to HTTP statuses.
var kindStatus = []struct {
	kind   error
	status int
}{
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrUnauthorized, http.StatusForbidden},
	{services.ErrInvalidStateTransition, http.StatusConflict},
	{services.ErrDuplicatePendingRequest, http.StatusConflict},
	{services.ErrCaptainLimitExceeded, http.StatusConflict},
	{services.ErrDuplicateMembership, http.StatusConflict},
	{services.ErrSlotOccupied, http.StatusConflict},
	{services.ErrPublishedImmutable, http.StatusConflict},
	{services.ErrPlayerAlreadyPlaced, http.StatusConflict},
	{services.ErrConflict, http.StatusConflict},
	{services.ErrCategoryClosed, http.StatusUnprocessableEntity},
	{services.ErrInvalidSlotForFormation, http.StatusUnprocessableEntity},
	{services.ErrValidationFailed, http.StatusUnprocessableEntity},
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в HTTP-ответы.
// Rule errors are rendered as {"error": {"kind", "message", "context"}}.
func mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	kind, ok := services.KindName(err)
	if !ok {
		serverErrorResponse(w, r, err)
		return
	}

	status := http.StatusInternalServerError
	for _, ks := range kindStatus {
		if errors.Is(err, ks.kind) {
			status = ks.status
			break
		}
	}

	body := jsonResponse{"kind": kind, "message": err.Error()}
	var re *services.RuleError
	if errors.As(err, &re) {
		if ctx := re.Context(); len(ctx) > 0 {
			body["context"] = ctx
		}
	}
	errorResponse(w, r, status, body)
}

func getIDFromURL(r *http.Request, paramName string) (int, error) {
	idStr := chi.URLParam(r, paramName)
	if idStr == "" {
		return 0, fmt.Errorf("missing %s in URL path", paramName)
	}

	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %q", paramName, idStr)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", paramName, id)
	}
	return id, nil
}

// getIDsFromURL reads several positive path parameters in order.
func getIDsFromURL(r *http.Request, names ...string) ([]int, error) {
	ids := make([]int, len(names))
	for i, name := range names {
		id, err := getIDFromURL(r, name)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s query parameter: %q", name, v)
	}
	return n, nil
}

// currentActor writes a 401 and returns false when the request carries no
// usable identity.
func currentActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return models.Actor{}, false
	}
	return actor, true
}
