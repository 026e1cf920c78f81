// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides device identification. Anonymous visitors have no
// account, so every piece of device-scoped state (the pending pointer, staged
// payloads, the anonymous quota ledger, the consent flag) is keyed by a
// client-minted device ID carried in the X-Device-ID header. The middleware
// validates the header, falls back to minting a fresh ID when it is absent or
// malformed, and echoes the effective ID on the response so the client can
// persist it.
package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderDeviceID is the request header carrying the client-minted device ID.
const HeaderDeviceID = "X-Device-ID"

// deviceIDKey is the Gin context key under which the device ID is stored.
const deviceIDKey = "deviceID"

// deviceIDRE bounds accepted device IDs: UUID-shaped or any modest opaque
// token. Anything else is treated as absent rather than rejected, since a
// device ID is an identity hint, not a credential.
var deviceIDRE = regexp.MustCompile(`^[A-Za-z0-9\-_]{8,64}$`)

// DeviceID attaches the effective device ID to the request context.
//
// Behavior:
//   - A valid X-Device-ID header is reused.
//   - A missing or malformed header yields a freshly minted UUIDv4, so
//     downstream code never sees an empty device scope.
//   - The effective ID is written back to the response header; clients that
//     lost theirs adopt the new one.
func DeviceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderDeviceID)
		if !deviceIDRE.MatchString(id) {
			id = uuid.NewString()
		}
		c.Set(deviceIDKey, id)
		c.Writer.Header().Set(HeaderDeviceID, id)
		c.Next()
	}
}

// DeviceFrom returns the device ID attached by DeviceID. Handlers should
// prefer this over reading the header directly.
func DeviceFrom(c *gin.Context) string {
	if v, ok := c.Get(deviceIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
