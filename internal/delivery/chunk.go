package delivery

// Chunk splits text into pieces of at least size characters. A piece that
// would end inside the text is extended to just past the next '.', '?' or
// '!', or to the end of the text when no terminator follows. Concatenating
// the pieces always yields text.
func Chunk(text string, size int) []string {
	if size < 1 {
		size = 1
	}

	// offs[k] is the byte offset of the k-th character; offs[n] == len(text).
	offs := make([]int, 0, len(text)+1)
	for i := range text {
		offs = append(offs, i)
	}
	offs = append(offs, len(text))
	n := len(offs) - 1

	var chunks []string
	for i := 0; i < n; {
		j := min(i+size, n)
		if j < n {
			for j < n && !isTerminator(text[offs[j]]) {
				j++
			}
			if j < n {
				j++
			}
		}
		chunks = append(chunks, text[offs[i]:offs[j]])
		i = j
	}
	return chunks
}

func isTerminator(b byte) bool {
	return b == '.' || b == '?' || b == '!'
}
