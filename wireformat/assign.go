package wireformat

import (
	"fmt"
	"reflect"
)

// assign stores a canonical decoded value into dst, converting between
// numeric kinds when the value fits.
func assign(dst reflect.Value, src any) error {
	if dst.Kind() == reflect.Interface && dst.NumMethod() == 0 {
		if src == nil {
			dst.Set(reflect.Zero(dst.Type()))
		} else {
			dst.Set(reflect.ValueOf(src))
		}
		return nil
	}
	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := assign(p.Elem(), src); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}

	sv := reflect.ValueOf(src)
	switch s := src.(type) {
	case []byte:
		return assignBytes(dst, s)
	case []any:
		return assignList(dst, s)
	case map[string]any:
		return assignRecord(dst, s)
	}

	switch dst.Kind() {
	case reflect.Bool:
		if sv.Kind() == reflect.Bool {
			dst.SetBool(sv.Bool())
			return nil
		}
	case reflect.String:
		if sv.Kind() == reflect.String {
			dst.SetString(sv.String())
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := toInt(src, 64)
		if err != nil {
			return err
		}
		if dst.OverflowInt(i) {
			return fmt.Errorf("value %d overflows %s", i, dst.Type())
		}
		dst.SetInt(i)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := toUint(src, 64)
		if err != nil {
			return err
		}
		if dst.OverflowUint(u) {
			return fmt.Errorf("value %d overflows %s", u, dst.Type())
		}
		dst.SetUint(u)
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := toFloat(src)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", src, dst.Type())
}

func assignBytes(dst reflect.Value, b []byte) error {
	switch {
	case dst.Kind() == reflect.String:
		dst.SetString(string(b))
		return nil
	case dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8:
		dst.SetBytes(append([]byte(nil), b...))
		return nil
	case dst.Kind() == reflect.Array && dst.Type().Elem().Kind() == reflect.Uint8:
		if dst.Len() != len(b) {
			return fmt.Errorf("cannot assign %d bytes to %s", len(b), dst.Type())
		}
		reflect.Copy(dst, reflect.ValueOf(b))
		return nil
	}
	return fmt.Errorf("cannot assign bytes to %s", dst.Type())
}

func assignList(dst reflect.Value, list []any) error {
	switch dst.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(dst.Type(), len(list), len(list))
		for i, v := range list {
			if err := assign(out.Index(i), v); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		dst.Set(out)
		return nil
	case reflect.Array:
		if dst.Len() != len(list) {
			return fmt.Errorf("cannot assign %d elements to %s", len(list), dst.Type())
		}
		for i, v := range list {
			if err := assign(dst.Index(i), v); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case reflect.Struct:
		// Tuples fill struct fields by position.
		if dst.NumField() != len(list) {
			return fmt.Errorf("cannot assign %d elements to %s", len(list), dst.Type())
		}
		for i, v := range list {
			if !dst.Type().Field(i).IsExported() {
				return fmt.Errorf("%s field %d is unexported", dst.Type(), i)
			}
			if err := assign(dst.Field(i), v); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	}
	return fmt.Errorf("cannot assign list to %s", dst.Type())
}

func assignRecord(dst reflect.Value, rec map[string]any) error {
	switch dst.Kind() {
	case reflect.Struct:
		for name, v := range rec {
			fv, ok := structField(dst, name)
			if !ok {
				return fmt.Errorf("%s has no field for %q", dst.Type(), name)
			}
			if err := assign(fv, v); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		return nil
	case reflect.Map:
		if dst.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("cannot assign record to %s", dst.Type())
		}
		if dst.IsNil() {
			dst.Set(reflect.MakeMapWithSize(dst.Type(), len(rec)))
		}
		for name, v := range rec {
			ev := reflect.New(dst.Type().Elem()).Elem()
			if err := assign(ev, v); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			dst.SetMapIndex(reflect.ValueOf(name).Convert(dst.Type().Key()), ev)
		}
		return nil
	}
	return fmt.Errorf("cannot assign record to %s", dst.Type())
}
