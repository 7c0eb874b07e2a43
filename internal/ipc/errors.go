package ipc

import (
	"errors"
	"fmt"
	"net/rpc"
	"regexp"

	"screencap/internal/services"
)

// RemoteError is a daemon-side failure reconstructed on the client. It
// unwraps to the services marker named by Code so errors.Is keeps working
// across the socket.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return services.MarkerForCode(e.Code)
}

var codePrefix = regexp.MustCompile(`^\[([a-z_]+)\] (.*)$`)

// encodeError flattens err into a net/rpc error string that carries its code.
func encodeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s", services.Code(err), err.Error())
}

// decodeError restores a RemoteError from a net/rpc server error.
func decodeError(err error) error {
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	m := codePrefix.FindStringSubmatch(string(serverErr))
	if m == nil {
		return err
	}
	return &RemoteError{Code: m[1], Message: m[2]}
}
