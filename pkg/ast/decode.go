package ast

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// DecodeError reports a malformed AST document together with the JSON path
// of the offending node.
type DecodeError struct {
	Path    string
	Message string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func decodeErrorf(path, format string, args ...any) error {
	return &DecodeError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// DecodeFile reads a program document of the form
// {"name": ..., "expression": <term>, "location": ...}.
func DecodeFile(r io.Reader) (*File, error) {
	raw, err := readObject(r)
	if err != nil {
		return nil, err
	}
	return decodeFileObject(raw)
}

// DecodeTerm reads a single term document tagged by "kind".
func DecodeTerm(r io.Reader) (Term, error) {
	raw, err := readObject(r)
	if err != nil {
		return nil, err
	}
	return decodeTerm(raw, "")
}

// DecodeEntry accepts either a full program document or a bare term. Bare
// terms are wrapped in a File carrying the term's own location.
func DecodeEntry(data []byte) (*File, error) {
	raw, err := readObject(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if _, tagged := raw["kind"]; !tagged {
		if _, ok := raw["expression"]; ok {
			return decodeFileObject(raw)
		}
	}
	term, err := decodeTerm(raw, "")
	if err != nil {
		return nil, err
	}
	loc := term.Loc()
	return &File{Name: loc.Filename, Expression: term, Location: loc}, nil
}

// UnmarshalJSON lets File participate in encoding/json directly.
func (f *File) UnmarshalJSON(data []byte) error {
	raw, err := readObject(bytes.NewReader(data))
	if err != nil {
		return err
	}
	decoded, err := decodeFileObject(raw)
	if err != nil {
		return err
	}
	*f = *decoded
	return nil
}

func readObject(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, decodeErrorf("", "empty document")
		}
		return nil, fmt.Errorf("parse json: %w", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, decodeErrorf("", "expected object, found %s", describeJSON(raw))
	}
	return obj, nil
}

func decodeFileObject(raw map[string]any) (*File, error) {
	name, _ := raw["name"].(string)
	exprNode, err := childObject(raw, "expression", "")
	if err != nil {
		return nil, err
	}
	expr, err := decodeTerm(exprNode, "expression")
	if err != nil {
		return nil, err
	}
	loc, err := decodeLocation(raw["location"], "location")
	if err != nil {
		return nil, err
	}
	return &File{Name: name, Expression: expr, Location: loc}, nil
}

func decodeTerm(node map[string]any, path string) (Term, error) {
	kind, _ := node["kind"].(string)
	loc, err := decodeLocation(node["location"], join(path, "location"))
	if err != nil {
		return nil, err
	}
	switch TermKind(kind) {
	case KindInt:
		val, err := decodeInt32(node["value"], join(path, "value"))
		if err != nil {
			return nil, err
		}
		return NewInt(val, loc), nil
	case KindStr:
		val, ok := node["value"].(string)
		if !ok {
			return nil, decodeErrorf(join(path, "value"), "expected string, found %s", describeJSON(node["value"]))
		}
		return NewStr(val, loc), nil
	case KindBool:
		val, ok := node["value"].(bool)
		if !ok {
			return nil, decodeErrorf(join(path, "value"), "expected bool, found %s", describeJSON(node["value"]))
		}
		return NewBool(val, loc), nil
	case KindVar:
		text, ok := node["text"].(string)
		if !ok {
			return nil, decodeErrorf(join(path, "text"), "expected string, found %s", describeJSON(node["text"]))
		}
		return NewVar(text, loc), nil
	case KindFunction:
		paramsRaw, ok := node["parameters"].([]any)
		if !ok && node["parameters"] != nil {
			return nil, decodeErrorf(join(path, "parameters"), "expected array, found %s", describeJSON(node["parameters"]))
		}
		params := make([]Parameter, 0, len(paramsRaw))
		for idx, raw := range paramsRaw {
			param, err := decodeParameter(raw, fmt.Sprintf("%s[%d]", join(path, "parameters"), idx))
			if err != nil {
				return nil, err
			}
			params = append(params, param)
		}
		body, err := childTerm(node, "value", path)
		if err != nil {
			return nil, err
		}
		return NewFunction(params, body, loc), nil
	case KindCall:
		callee, err := childTerm(node, "callee", path)
		if err != nil {
			return nil, err
		}
		argsRaw, ok := node["arguments"].([]any)
		if !ok && node["arguments"] != nil {
			return nil, decodeErrorf(join(path, "arguments"), "expected array, found %s", describeJSON(node["arguments"]))
		}
		args := make([]Term, 0, len(argsRaw))
		for idx, raw := range argsRaw {
			argPath := fmt.Sprintf("%s[%d]", join(path, "arguments"), idx)
			obj, ok := raw.(map[string]any)
			if !ok {
				return nil, decodeErrorf(argPath, "expected term object, found %s", describeJSON(raw))
			}
			arg, err := decodeTerm(obj, argPath)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return NewCall(callee, args, loc), nil
	case KindLet:
		name, err := decodeParameter(node["name"], join(path, "name"))
		if err != nil {
			return nil, err
		}
		value, err := childTerm(node, "value", path)
		if err != nil {
			return nil, err
		}
		next, err := childTerm(node, "next", path)
		if err != nil {
			return nil, err
		}
		return NewLet(name, value, next, loc), nil
	case KindIf:
		cond, err := childTerm(node, "condition", path)
		if err != nil {
			return nil, err
		}
		then, err := childTerm(node, "then", path)
		if err != nil {
			return nil, err
		}
		otherwise, err := childTerm(node, "otherwise", path)
		if err != nil {
			return nil, err
		}
		return NewIf(cond, then, otherwise, loc), nil
	case KindPrint:
		value, err := childTerm(node, "value", path)
		if err != nil {
			return nil, err
		}
		return NewPrint(value, loc), nil
	case KindTuple:
		first, err := childTerm(node, "first", path)
		if err != nil {
			return nil, err
		}
		second, err := childTerm(node, "second", path)
		if err != nil {
			return nil, err
		}
		return NewTuple(first, second, loc), nil
	case KindFirst:
		value, err := childTerm(node, "value", path)
		if err != nil {
			return nil, err
		}
		return NewFirst(value, loc), nil
	case KindSecond:
		value, err := childTerm(node, "value", path)
		if err != nil {
			return nil, err
		}
		return NewSecond(value, loc), nil
	case KindBinary:
		opName, ok := node["op"].(string)
		if !ok {
			return nil, decodeErrorf(join(path, "op"), "expected string, found %s", describeJSON(node["op"]))
		}
		op, err := ParseBinaryOp(opName)
		if err != nil {
			return nil, decodeErrorf(join(path, "op"), "%v", err)
		}
		lhs, err := childTerm(node, "lhs", path)
		if err != nil {
			return nil, err
		}
		rhs, err := childTerm(node, "rhs", path)
		if err != nil {
			return nil, err
		}
		return NewBinary(op, lhs, rhs, loc), nil
	case "":
		return nil, decodeErrorf(join(path, "kind"), "missing term kind")
	default:
		return nil, decodeErrorf(join(path, "kind"), "unknown kind %q", kind)
	}
}

func childObject(node map[string]any, key, path string) (map[string]any, error) {
	raw, present := node[key]
	if !present || raw == nil {
		return nil, decodeErrorf(join(path, key), "missing term")
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, decodeErrorf(join(path, key), "expected term object, found %s", describeJSON(raw))
	}
	return obj, nil
}

func childTerm(node map[string]any, key, path string) (Term, error) {
	obj, err := childObject(node, key, path)
	if err != nil {
		return nil, err
	}
	return decodeTerm(obj, join(path, key))
}

func decodeParameter(raw any, path string) (Parameter, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Parameter{}, decodeErrorf(path, "expected parameter object, found %s", describeJSON(raw))
	}
	text, ok := obj["text"].(string)
	if !ok {
		return Parameter{}, decodeErrorf(join(path, "text"), "expected string, found %s", describeJSON(obj["text"]))
	}
	loc, err := decodeLocation(obj["location"], join(path, "location"))
	if err != nil {
		return Parameter{}, err
	}
	return Parameter{Text: text, Location: loc}, nil
}

// decodeLocation tolerates a missing location; producers are not required
// to attach one to every node.
func decodeLocation(raw any, path string) (Location, error) {
	if raw == nil {
		return Location{}, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return Location{}, decodeErrorf(path, "expected location object, found %s", describeJSON(raw))
	}
	start, err := decodeOffset(obj["start"], join(path, "start"))
	if err != nil {
		return Location{}, err
	}
	end, err := decodeOffset(obj["end"], join(path, "end"))
	if err != nil {
		return Location{}, err
	}
	filename, _ := obj["filename"].(string)
	return Location{Start: start, End: end, Filename: filename}, nil
}

func decodeOffset(raw any, path string) (int, error) {
	if raw == nil {
		return 0, nil
	}
	num, ok := raw.(json.Number)
	if !ok {
		return 0, decodeErrorf(path, "expected number, found %s", describeJSON(raw))
	}
	val, err := num.Int64()
	if err != nil || val < 0 {
		return 0, decodeErrorf(path, "invalid offset %s", num.String())
	}
	return int(val), nil
}

func decodeInt32(raw any, path string) (int32, error) {
	num, ok := raw.(json.Number)
	if !ok {
		return 0, decodeErrorf(path, "expected integer, found %s", describeJSON(raw))
	}
	val, err := num.Int64()
	if err != nil {
		return 0, decodeErrorf(path, "invalid integer %s", num.String())
	}
	if val < math.MinInt32 || val > math.MaxInt32 {
		return 0, decodeErrorf(path, "integer %d out of 32-bit range", val)
	}
	return int32(val), nil
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func describeJSON(raw any) string {
	switch v := raw.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number:
		if strings.ContainsAny(v.String(), ".eE") {
			return "number " + v.String()
		}
		return "integer " + v.String()
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", raw)
	}
}
