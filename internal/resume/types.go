// Package resume 定义打印渲染时约定的简历文档结构。
// 同步协议本身把 resumeData 当作不透明 JSON；只有打印管线按此形状做宽松解析。
package resume

// Document 是一份可打印的简历文档。
type Document struct {
	Basics   Basics    `json:"basics"`
	Sections []Section `json:"sections"`
}

// Basics 是文档头部的身份信息。
type Basics struct {
	Name     string   `json:"name"`
	Headline string   `json:"headline"`
	Contacts []string `json:"contacts"`
}

// Section 表示文档中的一个段落（教育、经历、技能等）。
type Section struct {
	Title string  `json:"title"`
	Items []Entry `json:"items"`
}

// Entry 表示段落中的一条记录。
type Entry struct {
	Heading string `json:"heading"`
	Sub     string `json:"sub"`
	Period  string `json:"period"`
	Detail  string `json:"detail"`
}
