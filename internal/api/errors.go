package api

import "errors"

var (
	errInvalidLayer         = errors.New("unrecognised layer name")
	errMissingViewportField = errors.New("incomplete viewport: min_lat, max_lat, min_lon and max_lon are all required together")
)
