package httpHandler

import (
	"net/http"

	"grocery-sync/usecases"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const msgInvalidBody = "Invalid request body"

// statusOf maps a failure kind to its HTTP status.
func statusOf(kind usecases.Kind) int {
	switch kind {
	case usecases.KindValidation:
		return http.StatusBadRequest
	case usecases.KindUnauthorized:
		return http.StatusUnauthorized
	case usecases.KindForbidden:
		return http.StatusForbidden
	case usecases.KindNotFound:
		return http.StatusNotFound
	case usecases.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the {success:false,msg} body for err. Internal causes
// are logged and never leave the server.
func respondError(c *gin.Context, err error) {
	kind := usecases.KindOf(err)
	if kind == usecases.KindInternal {
		log.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"route":  c.FullPath(),
		}).Error("request failed")
	}
	c.JSON(statusOf(kind), gin.H{"success": false, "msg": usecases.MessageOf(err)})
}

func respondInvalidBody(c *gin.Context, err error) {
	log.WithError(err).WithField("route", c.FullPath()).Debug("could not bind request body")
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "msg": msgInvalidBody})
}
