package odoo

// Odoo's XML-RPC payloads are loosely typed: absent values come back as the
// boolean false, many2one fields as a [id, display_name] pair, and numbers as
// whatever the marshaller picked. These helpers normalize a search_read reply
// into predictable Go values.

// Row is a single record from a search_read reply.
type Row map[string]interface{}

// Rows converts a raw execute_kw reply into record maps. Non-list replies
// yield an empty slice.
func Rows(reply interface{}) []Row {
	list, ok := reply.([]interface{})
	if !ok {
		return nil
	}
	rows := make([]Row, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			rows = append(rows, Row(m))
		}
	}
	return rows
}

func AsInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func AsFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// AsString returns "" for absent fields (Odoo sends false, not null).
func AsString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Many2One unpacks a [id, name] relation pair. ok is false when the field is
// unset (boolean false upstream).
func Many2One(v interface{}) (id int, name string, ok bool) {
	pair, isList := v.([]interface{})
	if !isList || len(pair) == 0 {
		return 0, "", false
	}
	id = AsInt(pair[0])
	if id == 0 {
		return 0, "", false
	}
	if len(pair) > 1 {
		name = AsString(pair[1])
	}
	return id, name, true
}

// IDList unpacks a one2many/many2many id list.
func IDList(v interface{}) []int {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	ids := make([]int, 0, len(list))
	for _, item := range list {
		if id := AsInt(item); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
