package schema

import _ "embed"

//go:embed ossa-collector-config.schema.json
var ConfigSchema []byte

//go:embed ossa.schema.json
var AdvisorySchema []byte
