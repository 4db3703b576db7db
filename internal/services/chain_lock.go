package services

import "sync"

// chainLocker сериализует мутации одной цепочки версий (bucket, key).
// Каждая мутация — последовательность "прочитал-решил-записал" над общими
// строками; без взаимного исключения два конкурентных перехода могут
// оставить цепочку с нулем или двумя текущими версиями. Мутации разных
// цепочек не конкурируют между собой.
type chainLocker struct {
	mu     sync.Mutex
	chains map[string]*chainEntry
}

// chainEntry хранит мьютекс одной цепочки и счетчик ссылок.
// Счетчик позволяет удалять запись, когда за цепочку никто не держится,
// чтобы таблица не росла с числом когда-либо тронутых ключей.
type chainEntry struct {
	mu   sync.Mutex
	refs int
}

func newChainLocker() *chainLocker {
	return &chainLocker{chains: make(map[string]*chainEntry)}
}

// chainKey строит ключ цепочки. Разделитель не встречается в именах бакетов.
func chainKey(bucket, key string) string {
	return bucket + "\x00" + key
}

// Lock захватывает мьютекс цепочки (bucket, key).
func (l *chainLocker) Lock(bucket, key string) {
	ck := chainKey(bucket, key)

	l.mu.Lock()
	entry, ok := l.chains[ck]
	if !ok {
		entry = &chainEntry{}
		l.chains[ck] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

// Unlock освобождает мьютекс цепочки (bucket, key).
func (l *chainLocker) Unlock(bucket, key string) {
	ck := chainKey(bucket, key)

	l.mu.Lock()
	entry := l.chains[ck]
	entry.refs--
	if entry.refs == 0 {
		delete(l.chains, ck)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}
