package rpc

import "os"

func defaultHostname() (string, error) {
	return os.Hostname()
}
