package statusapi

import "errors"

var errEndpointRequired = errors.New("statusapi: endpoint is required")
