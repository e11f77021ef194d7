package adapter

// DocumentRenderer turns markdown-like text into a saved document.
type DocumentRenderer interface {
	Render(text, destPath string) error
}
