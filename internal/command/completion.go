// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT
package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/brickify/internal/meta"
)

const bashCompletionScript = `# bash completion for brickify
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_brickify()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "completion fetch install ls prune serve --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local store="--backend -b --cache-name --cache-dir --db --bucket --prefix --region --profile --endpoint"
    local origin="--origin --token --timeout --asset --media-prefix --web-manifest"
    local out="--attrs -a --color -c --filter -f --output -o --sort -s --titles -t --schema"

    case "$prev" in
        --backend|-b)
            COMPREPLY=( $(compgen -W "disk memory sqlite s3" -- "$cur") )
            return 0
            ;;
        --output|-o)
            COMPREPLY=( $(compgen -W "text json yaml raw" -- "$cur") )
            return 0
            ;;
        --cache-dir|--db)
            COMPREPLY=( $(compgen -f -- "$cur") )
            return 0
            ;;
    esac

    case "$cmd" in
        install)
            COMPREPLY=( $(compgen -W "$store $origin --dry-run -n" -- "$cur") )
            ;;
        fetch)
            COMPREPLY=( $(compgen -W "$store $origin --install --no-install --method -X --body" -- "$cur") )
            ;;
        serve)
            COMPREPLY=( $(compgen -W "$store $origin --install --no-install --addr" -- "$cur") )
            ;;
        ls)
            COMPREPLY=( $(compgen -W "$store $out --media-prefix" -- "$cur") )
            ;;
        prune)
            COMPREPLY=( $(compgen -W "$store --dry-run -n" -- "$cur") )
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
            ;;
    esac
    return 0
}

complete -F _brickify brickify
`

const zshCompletionScript = `#compdef brickify

_brickify() {
  local -a commands
  commands=(
    'completion:generate shell completion script'
    'fetch:fetch paths through the caching worker'
    'install:pre-cache the asset manifest'
    'ls:list cache stores or the entries of one store'
    'prune:delete cache stores other than the current cache name'
    'serve:run the caching worker as a local proxy'
  )

  local -a store origin out
  store=(
    '(-b --backend)'{-b,--backend}'[cache backend]:backend:(disk memory sqlite s3)'
    '--cache-name[cache store name]'
    '--cache-dir[disk backend directory]:directory:_directories'
    '--db[sqlite database file]:file:_files'
    '--bucket[s3 bucket]'
    '--prefix[s3 key prefix]'
    '--region[aws region]'
    '--profile[aws profile]'
    '--endpoint[s3 endpoint url]'
  )
  origin=(
    '--origin[origin server url]'
    '--token[bearer token]'
    '--timeout[network timeout]'
    '*--asset[asset path to pre-cache]'
    '*--media-prefix[network-first path prefix]'
    '--web-manifest[web manifest path]'
  )
  out=(
    '(-a --attrs)'{-a,--attrs}'[attributes]'
    '(-c --color)'{-c,--color}'[color output]'
    '(-f --filter)'{-f,--filter}'[filter]'
    '(-o --output)'{-o,--output}'[output format]:format:(text json yaml raw)'
    '(-s --sort)'{-s,--sort}'[sort]'
    '(-t --titles)'{-t,--titles}'[show titles]'
    '--schema[dump schema]'
  )

  _arguments -C '1: :->cmds' '*:: :->args'
  case $state in
    cmds)
      _describe 'command' commands
      return
      ;;
  esac

  case $words[1] in
    install)
      _arguments $store $origin '(-n --dry-run)'{-n,--dry-run}'[dry run]'
      ;;
    fetch)
      _arguments $store $origin '--no-install[reuse installed cache]' '(-X --method)'{-X,--method}'[method]' '--body[write body to stdout]' '*:path:'
      ;;
    serve)
      _arguments $store $origin '--no-install[reuse installed cache]' '--addr[listen address]'
      ;;
    ls)
      _arguments $store $out '*--media-prefix[network-first path prefix]' '1:store:'
      ;;
    prune)
      _arguments $store '(-n --dry-run)'{-n,--dry-run}'[dry run]'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _brickify brickify
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	w := stdout(cmd)
	switch shell {
	case "bash":
		fmt.Fprint(w, bashCompletionScript)
	case "zsh":
		fmt.Fprint(w, zshCompletionScript)
	default:
		// Try to detect from SHELL or print help
		sh := os.Getenv("SHELL")
		if strings.HasSuffix(sh, "zsh") {
			fmt.Fprint(w, zshCompletionScript)
		} else if strings.HasSuffix(sh, "bash") {
			fmt.Fprint(w, bashCompletionScript)
		} else {
			fmt.Fprintln(stderr(cmd), "usage: brickify completion [bash|zsh]")
			return nil
		}
	}
	return nil
}

func CompletionCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&CommandBuilder{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "brickify completion [bash|zsh]",
		Action:    CompletionCommandAction,
		Meta:      meta,
	}).Build()
}
