package odoo

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/kolo/xmlrpc"
)

// Client speaks the Odoo external XML-RPC API. It holds one proxy for the
// "common" endpoint (authentication, version) and one for the "object"
// endpoint (model calls via execute_kw).
type Client struct {
	url    string
	db     string
	common *xmlrpc.Client
	object *xmlrpc.Client
}

func NewClient(rawURL, db string) (*Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		MaxIdleConnsPerHost:   4,
	}

	common, err := xmlrpc.NewClient(rawURL+"/xmlrpc/2/common", transport)
	if err != nil {
		return nil, fmt.Errorf("odoo: creating common proxy: %w", err)
	}
	object, err := xmlrpc.NewClient(rawURL+"/xmlrpc/2/object", transport)
	if err != nil {
		return nil, fmt.Errorf("odoo: creating object proxy: %w", err)
	}

	return &Client{url: rawURL, db: db, common: common, object: object}, nil
}

// Authenticate logs in against the configured database and returns the user
// id. Odoo answers `false` instead of a uid when credentials are rejected.
func (c *Client) Authenticate(username, secret string) (int, error) {
	var reply interface{}
	args := []interface{}{c.db, username, secret, map[string]interface{}{}}
	if err := c.common.Call("authenticate", args, &reply); err != nil {
		return 0, fmt.Errorf("odoo: authenticate call failed: %w", err)
	}

	switch uid := reply.(type) {
	case int64:
		if uid > 0 {
			return int(uid), nil
		}
	case int:
		if uid > 0 {
			return uid, nil
		}
	case float64:
		if uid > 0 {
			return int(uid), nil
		}
	}
	return 0, ErrAuthFailed
}

// Version reports the upstream server version, used by connection tests.
func (c *Client) Version() (string, error) {
	var reply interface{}
	if err := c.common.Call("version", []interface{}{}, &reply); err != nil {
		return "", fmt.Errorf("odoo: version call failed: %w", err)
	}
	if m, ok := reply.(map[string]interface{}); ok {
		return AsString(m["server_version"]), nil
	}
	return "", nil
}

// ExecuteKw invokes a model method through the object endpoint. All calls in
// this service are read-only search_read queries.
func (c *Client) ExecuteKw(uid int, secret, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}
	var reply interface{}
	call := []interface{}{c.db, uid, secret, model, method, args, kwargs}
	if err := c.object.Call("execute_kw", call, &reply); err != nil {
		return nil, fmt.Errorf("odoo: execute_kw %s.%s failed: %w", model, method, err)
	}
	return reply, nil
}
