// Package digest вычисляет контрольную сумму контента объекта (ETag).
package digest

import (
	"crypto/md5" //nolint:gosec // MD5 используется как контрольная сумма (ETag), не для криптографии
	"fmt"
	"io"
)

// Compute читает поток до конца и возвращает ETag и размер контента в байтах.
// ETag — MD5 в нижнем регистре hex, в двойных кавычках, как у однокомпонентной
// загрузки S3. Функция детерминирована и не имеет побочных эффектов.
func Compute(r io.Reader) (etag string, size int64, err error) {
	h := md5.New() //nolint:gosec // см. выше
	size, err = io.Copy(h, r)
	if err != nil {
		return "", 0, fmt.Errorf("ошибка чтения контента при вычислении ETag: %w", err)
	}
	return fmt.Sprintf("\"%x\"", h.Sum(nil)), size, nil
}
