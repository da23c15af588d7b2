package handler

import (
	"github.com/tidwall/gjson"
)

func isJSONObject(body []byte) bool {
	return gjson.ValidBytes(body) && gjson.ParseBytes(body).IsObject()
}

// namespaceOf reads "namespace", falling back to the short "nsp" key
func namespaceOf(r gjson.Result) (string, bool) {
	ns := r.Get("namespace")
	if !ns.Exists() {
		ns = r.Get("nsp")
	}
	return nonEmptyString(ns)
}

func nonEmptyString(r gjson.Result) (string, bool) {
	if r.Type != gjson.String || r.Str == "" {
		return "", false
	}
	return r.Str, true
}

func isStringArray(r gjson.Result) bool {
	if !r.IsArray() {
		return false
	}
	ok := true
	r.ForEach(func(_, v gjson.Result) bool {
		ok = v.Type == gjson.String
		return ok
	})
	return ok
}

func optionalBool(r gjson.Result) bool {
	return !r.Exists() || r.IsBool()
}

func validateEmit(body []byte) (string, bool) {
	r := gjson.ParseBytes(body)
	ns, ok := namespaceOf(r)
	if !ok {
		return "", false
	}
	if _, ok := nonEmptyString(r.Get("event")); !ok {
		return "", false
	}
	if src := r.Get("source"); src.Exists() && src.Type != gjson.String && src.Type != gjson.Null {
		return "", false
	}
	flags := r.Get("flags")
	if !flags.IsObject() {
		return "", false
	}
	for _, key := range []string{"volatile", "broadcast", "compress", "binary"} {
		if !optionalBool(flags.Get(key)) {
			return "", false
		}
	}
	if !isStringArray(r.Get("rooms")) || !r.Get("args").IsArray() {
		return "", false
	}
	return ns, true
}

func validateJoin(body []byte) (string, bool) {
	r := gjson.ParseBytes(body)
	ns, ok := namespaceOf(r)
	if !ok {
		return "", false
	}
	if _, ok := nonEmptyString(r.Get("socket")); !ok {
		return "", false
	}
	if !isStringArray(r.Get("rooms")) {
		return "", false
	}
	return ns, true
}

func validateLeave(body []byte) (string, bool) {
	r := gjson.ParseBytes(body)
	ns, ok := namespaceOf(r)
	if !ok {
		return "", false
	}
	if _, ok := nonEmptyString(r.Get("socket")); !ok {
		return "", false
	}
	if _, ok := nonEmptyString(r.Get("room")); !ok {
		return "", false
	}
	return ns, true
}
