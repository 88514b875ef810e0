package codeintel

import "strings"

// Document chunking targets: semantic splitter aims for ~1000 chars and
// never exceeds 1500, splitting preferentially on paragraph then sentence
// boundaries, falling back to word boundaries when neither is available
// within range. A chunk below the 200-char floor is folded into the chunk
// before it when the merged result stays within 1500; a short first chunk,
// or one whose predecessor has no room left, is kept as a short chunk.
const (
	chunkTarget = 1000
	chunkCap    = 1500
	chunkFloor  = 200
)

// ChunkDocument splits prose into semantic chunks for embedding.
func ChunkDocument(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= chunkCap {
		return []string{text}
	}

	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		chunks = append(chunks, strings.TrimSpace(buf.String()))
		buf.Reset()
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if buf.Len() > 0 && buf.Len()+len(para)+2 > chunkCap {
			flush()
		}

		if len(para) > chunkCap {
			for _, piece := range splitOversizeParagraph(para) {
				if buf.Len() > 0 && buf.Len()+len(piece)+1 > chunkCap {
					flush()
				}
				buf.WriteString(piece)
				buf.WriteString(" ")
				if buf.Len() >= chunkTarget {
					flush()
				}
			}
			continue
		}

		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)

		if buf.Len() >= chunkTarget {
			flush()
		}
	}
	flush()

	return mergeUndersizedChunks(chunks)
}

// splitOversizeParagraph splits on sentence boundaries first, falling back
// to word boundaries for any sentence still over the cap.
func splitOversizeParagraph(para string) []string {
	sentences := splitSentences(para)
	var out []string
	for _, s := range sentences {
		if len(s) <= chunkCap {
			out = append(out, s)
			continue
		}
		out = append(out, splitWords(s, chunkTarget)...)
	}
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentences = append(sentences, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(cur.String()))
	}
	return sentences
}

func splitWords(text string, target int) []string {
	words := strings.Fields(text)
	var out []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() > 0 && cur.Len()+len(w)+1 > target {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// mergeUndersizedChunks folds any chunk below the floor into its neighbor so
// a trailing short paragraph doesn't become its own noisy embedding.
func mergeUndersizedChunks(chunks []string) []string {
	if len(chunks) < 2 {
		return chunks
	}
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if len(c) < chunkFloor && len(out) > 0 && len(out[len(out)-1])+len(c)+2 <= chunkCap {
			out[len(out)-1] = out[len(out)-1] + "\n\n" + c
			continue
		}
		out = append(out, c)
	}
	return out
}

// ChunkCodeSymbol returns a symbol's body as-is when it fits in one chunk,
// or splits it at statement (newline) boundaries when it doesn't - the
// parser already gave us a semantically meaningful span (the function or
// struct body), so we only need to cut it further when it's oversize.
func ChunkCodeSymbol(sym Symbol) []string {
	if len(sym.Body) <= chunkCap {
		return []string{sym.Body}
	}

	statements := strings.Split(sym.Body, "\n")
	var chunks []string
	var buf strings.Builder
	for _, stmt := range statements {
		if buf.Len() > 0 && buf.Len()+len(stmt)+1 > chunkCap {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(stmt)
	}
	if buf.Len() > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}
