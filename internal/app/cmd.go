package app

import (
	"fmt"
	"io"
)

// Command はnewsmanの起動モードを表す。
type Command string

const (
	// CommandServe は記事APIを提供するHTTPサーバーとして起動する。
	// INGEST_ON_SERVEが有効な場合は取り込みと保持期間クリーンアップも同じプロセスで動かす。
	CommandServe Command = "serve"
	// CommandWorker はHTTPを持たず、ニュースソースの定期取り込みと古い記事の削除だけを行う。
	CommandWorker Command = "worker"
	// CommandMigrate はスキーマを最新まで適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを叩いて終了コードで結果を返す。
	// シェルの無いdistrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示して終了する。
	CommandHelp Command = "help"
)

// commandUsages は使い方に表示するサブコマンドと説明。表示順を保つためスライスで持つ。
var commandUsages = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "記事APIサーバーを起動する (既定)"},
	{CommandWorker, "ニュースソースの取り込みと保持期間クリーンアップを実行する"},
	{CommandMigrate, "データベースマイグレーションを適用する"},
	{CommandHealthcheck, "ローカルのサーバーの /health を確認する"},
	{CommandHelp, "この使い方を表示する"},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
// 2番目以降の引数は無視する。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "worker":
		return CommandWorker
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	case "help", "-h", "--help":
		return CommandHelp
	default:
		return CommandServe
	}
}

// WriteUsage はサブコマンドの一覧をwに書き出す。
func WriteUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: newsman [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, u := range commandUsages {
		fmt.Fprintf(w, "  %-12s %s\n", u.cmd, u.desc)
	}
}
