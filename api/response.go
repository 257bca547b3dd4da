package api

import (
	err "github.com/cloudverse/metering-center/core/errors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type JsonObject map[string]interface{}

func respJSON(v interface{}) gin.H {
	return gin.H{
		"code": 0,
		"data": v,
	}
}

func respError(e error) gin.H {
	var ge err.GenericError
	if !errors.As(e, &ge) {
		ge = err.New(err.Unknown)
	}

	return gin.H{
		"code": -1,
		"err":  ge.Code,
		"msg":  ge.Error(),
	}
}
