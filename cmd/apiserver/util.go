package main

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ejc3/workflow/internal/apierr"
)

func badRequest(err error) error {
	return apierr.Validation(err.Error())
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
