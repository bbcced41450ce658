package handlers

import (
	"errors"
	"log"

	"github.com/Topaz-Oz/Lience-Plate-Detect/services"
	"github.com/Topaz-Oz/Lience-Plate-Detect/store"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request. Clients branch on Code.
type ErrorResponse struct {
	Error  string        `json:"error"`
	Code   services.Kind `json:"code"`
	Reason string        `json:"reason,omitempty"`
}

func respondError(c *gin.Context, err error) {
	var e *services.Error
	if !errors.As(err, &e) {
		switch {
		case errors.Is(err, store.ErrNotFound):
			e = &services.Error{Kind: services.KindNotFound, Err: err}
		default:
			log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
			e = &services.Error{Kind: services.KindInternal, Err: errors.New("internal server error")}
		}
	}
	if e.Kind == services.KindPersistence {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), e.Err)
	}
	c.JSON(e.Kind.Status(), ErrorResponse{Error: e.Error(), Code: e.Kind, Reason: e.Reason})
}

func badRequest(c *gin.Context, format string, args ...any) {
	respondError(c, services.ValidationError(format, args...))
}
