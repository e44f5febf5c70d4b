// Command reflow runs the reflow-oven controller.
package main

import "os"

// @title                       Reflow Oven API
// @version                     1.0
// @description                 Control and monitoring API for the reflow oven controller.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the token.
func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
