//go:build debug

package debug

import "fmt"

func Assert(cond bool, args ...any) {
	if cond {
		return
	}
	if len(args) == 0 {
		panic("assertion failed")
	}
	panic(fmt.Sprint(args...))
}

func Assertf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	panic(fmt.Sprintf(format, args...))
}

func AssertNoErr(err error) {
	if err != nil {
		panic(err)
	}
}

func AssertFunc(f func() bool, args ...any) {
	Assert(f(), args...)
}
