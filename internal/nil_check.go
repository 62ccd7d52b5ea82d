package internal

import "reflect"

// IsNil 判斷介面值是否為 nil，包含帶型別的 nil 指標（例如 (*T)(nil) 存入介面）。
// 選用的協作者（通知、紀錄）在建構時以此正規化為真正的 nil。
func IsNil(i interface{}) bool {
	if i == nil {
		return true
	}
	switch v := reflect.ValueOf(i); v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	}
	return false
}
