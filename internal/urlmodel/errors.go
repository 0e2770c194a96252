package urlmodel

import "errors"

var (
	// ErrNotAURL is returned by every accessor when the input does not have the
	// shape (protocol://)?(subdomains.)*domain.tld(/path)?.
	ErrNotAURL = errors.New("not a url")

	// ErrHasProtocol is returned by AddProtocol when the address already names a protocol.
	ErrHasProtocol = errors.New("url already has a protocol")
)
