package middleware

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	apierrors "github.com/yukikurage/rocks-tracker-api/internal/errors"
)

// Recovery turns a panic into a 500. The panic value is only exposed in
// development.
func Recovery(log logrus.FieldLogger, development bool) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered interface{}) {
		log.WithFields(logrus.Fields{
			"panic":      recovered,
			"request_id": GetRequestID(c),
			"path":       c.Request.URL.Path,
			"stack":      string(debug.Stack()),
		}).Error("Recovered from panic")

		message := ""
		if development {
			message = fmt.Sprintf("panic: %v", recovered)
		}
		apierrors.InternalError(c, message)
		c.Abort()
	})
}
