// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command juris runs the Juris legal-information backend.
//
//	juris serve                      # HTTP API
//	juris chat "my landlord ..."     # one turn from the terminal
//	juris tools serve [--http :8090] # MCP form/referral tool server
//	juris schema sync                # create the Weaviate class
//
// Configuration comes from --config (YAML), a .env file and JURIS_*
// environment variables.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
