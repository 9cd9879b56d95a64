package markdown

import (
	"os"
	"strings"
)

// File represents a Markdown file split into a Front Matter and a body.
// Content is the original buffer and is never mutated; every offset recorded
// here and in Metadata points inside this buffer.
type File struct {
	Path    string
	Content []byte

	FrontMatter FrontMatter

	// Byte span of the whole Front Matter block, including both --- delimiter
	// lines and the trailing newline of the closing one. Both are zero when
	// the file has no Front Matter.
	FrontMatterStart int
	FrontMatterEnd   int

	// Byte offset of the closing --- delimiter line. Zero without Front Matter.
	FrontMatterClose int
}

// ParseFile parses a Markdown file from disk.
func ParseFile(path string) (*File, error) {
	contentAsBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(contentAsBytes, path), nil
}

// Parse parses a Markdown document from its raw content.
func Parse(content []byte, path string) *File {
	file := &File{
		Path:    path,
		Content: content,
	}

	raw := string(content)
	if !strings.HasPrefix(raw, "---\n") && raw != "---" {
		return file
	}

	// Search the closing delimiter line
	offset := len("---\n")
	for offset < len(raw) {
		lineEnd := strings.IndexByte(raw[offset:], '\n')
		var line string
		if lineEnd == -1 {
			line = raw[offset:]
			lineEnd = len(raw) - offset
		} else {
			line = raw[offset : offset+lineEnd]
		}
		if strings.TrimRight(line, " ") == "---" {
			end := offset + lineEnd
			if end < len(raw) {
				end++ // include the newline after the closing ---
			}
			file.FrontMatter = FrontMatter(raw[len("---\n"):offset])
			file.FrontMatterStart = 0
			file.FrontMatterEnd = end
			file.FrontMatterClose = offset
			return file
		}
		offset += lineEnd + 1
	}

	// No closing delimiter = no Front Matter
	return file
}

// Body returns the document without its Front Matter.
func (f *File) Body() Document {
	return Document(f.Content[f.FrontMatterEnd:])
}

// BodyStart returns the byte offset where the body begins.
func (f *File) BodyStart() int {
	return f.FrontMatterEnd
}
