package repository

import "errors"

// 仓储层的哨兵错误，handler 用 errors.Is 映射为响应码
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateSKU = errors.New("sku already exists")
)
