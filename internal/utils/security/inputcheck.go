package security

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type Limits struct {
	MaxString int // generic string max length (flag values, package names)
	MaxPath   int // file path max length
	AllowNL   bool
	AllowTab  bool
}

func DefaultLimits() Limits {
	return Limits{
		MaxString: 4096,
		MaxPath:   4096,
		AllowNL:   true,
		AllowTab:  true,
	}
}

func ValidateString(name, s string, lim Limits) error {
	return validate(name, s, lim.MaxString, lim)
}

func ValidatePath(name, s string, lim Limits) error {
	return validate(name, s, lim.MaxPath, lim)
}

func validate(name, s string, max int, lim Limits) error {
	if s == "" {
		return nil
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s: invalid UTF-8", name)
	}
	if strings.ContainsRune(s, '\x00') {
		return fmt.Errorf("%s: contains NUL byte", name)
	}
	if n := utf8.RuneCountInString(s); n > max {
		return fmt.Errorf("%s: too long (%d > %d)", name, n, max)
	}
	for _, r := range s {
		if (r == '\n' && lim.AllowNL) || (r == '\t' && lim.AllowTab) {
			continue
		}
		if !unicode.IsPrint(r) {
			return fmt.Errorf("%s: contains non-printable/control runes", name)
		}
	}
	return nil
}

// ValidateStructStrings walks every exported string reachable from obj.
// Fields whose path mentions "dir", "file" or "path" get the path limits.
func ValidateStructStrings(obj any, lim Limits) error {
	return walkValue(reflect.ValueOf(obj), "config", lim)
}

func walkValue(v reflect.Value, path string, lim Limits) error {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return walkValue(v.Elem(), path, lim)
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := walkValue(v.Field(i), path+"."+t.Field(i).Name, lim); err != nil {
				return err
			}
		}
	case reflect.Map:
		for _, k := range v.MapKeys() {
			if err := walkValue(v.MapIndex(k), path+"["+fmt.Sprint(k.Interface())+"]", lim); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := walkValue(v.Index(i), fmt.Sprintf("%s[%d]", path, i), lim); err != nil {
				return err
			}
		}
	case reflect.String:
		if isPathy(path) {
			return ValidatePath(path, v.String(), lim)
		}
		return ValidateString(path, v.String(), lim)
	}
	return nil
}

func isPathy(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "path") || strings.Contains(lower, "file") || strings.Contains(lower, "dir")
}

// AttachRecursive installs argument and flag validation on root and all subcommands.
func AttachRecursive(root *cobra.Command, lim Limits) {
	attach(root, lim)
	for _, c := range root.Commands() {
		AttachRecursive(c, lim)
	}
}

func attach(cmd *cobra.Command, lim Limits) {
	prev := cmd.PersistentPreRunE
	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		if err := validateFlagsAndArgs(c, args, lim); err != nil {
			return err
		}
		if prev != nil {
			return prev(c, args)
		}
		return nil
	}
}

func validateFlagsAndArgs(cmd *cobra.Command, args []string, lim Limits) error {
	for i, a := range args {
		if err := ValidateString(fmt.Sprintf("arg[%d]", i), a, lim); err != nil {
			return err
		}
	}

	var firstErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if firstErr != nil {
			return
		}
		name := fmt.Sprintf("flag --%s", f.Name)
		check := ValidateString
		if isPathy(f.Name) {
			check = ValidatePath
		}

		switch f.Value.Type() {
		case "string":
			val, _ := cmd.Flags().GetString(f.Name)
			firstErr = check(name, val, lim)
		case "stringSlice", "stringArray":
			var vals []string
			if f.Value.Type() == "stringSlice" {
				vals, _ = cmd.Flags().GetStringSlice(f.Name)
			} else {
				vals, _ = cmd.Flags().GetStringArray(f.Name)
			}
			for i, v := range vals {
				if firstErr = check(fmt.Sprintf("%s[%d]", name, i), v, lim); firstErr != nil {
					return
				}
			}
		}
	})
	return firstErr
}
