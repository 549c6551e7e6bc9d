package phases

var descriptions = map[Phase]string{
	Idle:                 "アイドル状態 - タスクなし",
	Research:             "調査フェーズ - 要件分析・既存コード調査",
	Requirements:         "要件定義フェーズ - 機能要件・非機能要件・受け入れ基準の定義",
	ParallelAnalysis:     "並列分析フェーズ - 脅威モデリング + 設計を並列実行",
	ParallelDesign:       "並列設計フェーズ - ステートマシン + フローチャート + UI設計を並列実行",
	DesignReview:         "設計レビュー - AIによる技術レビュー + ユーザー承認",
	TestDesign:           "テスト設計フェーズ",
	TestImpl:             "テスト実装フェーズ（TDD Red） - テストコード先行作成",
	Implementation:       "実装フェーズ（TDD Green） - テストを通す実装",
	Refactoring:          "リファクタリングフェーズ（TDD Refactor） - コード品質改善",
	ParallelQuality:      "並列品質チェックフェーズ - ビルド確認 + コードレビューを並列実行",
	Testing:              "テスト実行フェーズ",
	ParallelVerification: "並列検証フェーズ - 手動テスト + セキュリティスキャン + パフォーマンステスト + E2Eテストを並列実行",
	DocsUpdate:           "ドキュメント更新フェーズ - 仕様書・READMEの更新",
	Commit:               "コミットフェーズ",
	Push:                 "プッシュフェーズ - リモートへのプッシュ",
	CIVerification:       "CI検証フェーズ - CI/CDパイプラインの確認",
	Deploy:               "デプロイフェーズ",
	Completed:            "完了",

	ThreatModeling:  "脅威モデリングフェーズ - セキュリティ脅威の特定・対策検討",
	Planning:        "設計フェーズ - 仕様書作成",
	StateMachine:    "ステートマシン図作成 - UI・状態遷移の設計",
	Flowchart:       "フローチャート作成 - 処理フロー・ロジックの設計",
	UIDesign:        "UI設計フェーズ - レイアウト・状態遷移・操作フロー設計",
	BuildCheck:      "ビルド確認フェーズ",
	CodeReview:      "コードレビュー - AIによる実装・テストレビュー",
	ManualTest:      "手動確認フェーズ",
	SecurityScan:    "セキュリティスキャンフェーズ - 自動脆弱性検出",
	PerformanceTest: "パフォーマンステストフェーズ - 性能・負荷テスト",
	E2ETest:         "E2Eテストフェーズ - エンドツーエンドテストの実行",
}

// Describe returns the human description of p, or p itself when unknown.
func Describe(p Phase) string {
	if d, ok := descriptions[p]; ok {
		return d
	}
	return string(p)
}
