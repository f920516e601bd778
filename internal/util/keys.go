package util

import (
	"encoding/base64"
	"strings"
)

const segmentPrefix = "k"

// PathSegment encodes key as a single file name. The prefix keeps the empty
// key valid and keeps encoded names from starting with a dot.
func PathSegment(key []byte) string {
	return segmentPrefix + base64.RawURLEncoding.EncodeToString(key)
}

// ParsePathSegment reverses PathSegment.
func ParsePathSegment(name string) ([]byte, bool) {
	if !strings.HasPrefix(name, segmentPrefix) {
		return nil, false
	}
	b, err := base64.RawURLEncoding.DecodeString(name[len(segmentPrefix):])
	if err != nil {
		return nil, false
	}
	return b, true
}

// Namespaced returns "<ns>:<key>", or key unchanged when ns is empty.
func Namespaced(ns string, key []byte) string {
	if ns == "" {
		return string(key)
	}
	return ns + ":" + string(key)
}
