// Package middleware はGinベースのゲートウェイで使用する共通ミドルウェアを提供する。
//
// CORS設定、パニックリカバリ、リクエストボディのサイズ制限、
// リクエストIDの付与、zerologによるアクセスログを含む。
package middleware
