package classify

var labels = map[Category]string{
	Code:    "ソースコード",
	Test:    "テストコード",
	Spec:    "仕様書",
	Diagram: "図式ファイル",
	Config:  "設定ファイル",
	Env:     "環境変数ファイル",
	Other:   "その他",
}

var examples = map[Category]string{
	Code:    "*.ts, *.tsx, *.js, *.jsx",
	Test:    "*.test.ts, *.spec.ts, __tests__/",
	Spec:    "*.md",
	Diagram: "*.mmd",
	Config:  "package.json, tsconfig.json, *.yaml",
	Env:     ".env, .env.local, .env.*",
	Other:   "その他のファイル",
}

// Label returns the localized display name of c, or c itself when unknown.
func (c Category) Label() string {
	if l, ok := labels[c]; ok {
		return l
	}
	return string(c)
}

// Examples returns sample file patterns for c.
func (c Category) Examples() string {
	if e, ok := examples[c]; ok {
		return e
	}
	return string(c)
}
