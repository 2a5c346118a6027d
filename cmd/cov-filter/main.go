package main

// cov-filter extracts reads named in an identifier list from BAM/CRAM
// and FASTQ inputs.
//
// Example: extract reads as FASTA from a CRAM, plus the matching raw
// read pairs:
//
//    cov-filter -list ids.txt -cram sample.cram -fasta ref.fa \
//        -fastq r1.fastq.gz -fastq2 r2.fastq.gz \
//        -fasta-out -fastq-out -read-list matched.txt
//
// Outputs are written next to their inputs as <stem>.<suffix>.<ext>.

import (
	"flag"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/jmoellmann/covtools/filter"
)

func main() {
	var opts filter.Opts
	flag.StringVar(&opts.List, "list", "", "File listing the read identifiers to keep, one per line. Required.")
	flag.StringVar(&opts.BAM, "bam", "", "BAM input. Exactly one of -bam and -cram is required.")
	flag.StringVar(&opts.CRAM, "cram", "", "CRAM input. Exactly one of -bam and -cram is required.")
	flag.StringVar(&opts.Fasta, "fasta", "", "Reference FASTA the CRAM was compressed against. Required with -cram.")
	flag.StringVar(&opts.Fastq1, "fastq", "", "FASTQ input, optionally gzipped.")
	flag.StringVar(&opts.Fastq2, "fastq2", "", "Second FASTQ of a pair. Requires -fastq.")
	flag.StringVar(&opts.Suffix, "suffix", filter.DefaultSuffix, "Suffix inserted into output filenames.")
	flag.BoolVar(&opts.FastaOut, "fasta-out", false, "Write matched alignment records as FASTA.")
	flag.BoolVar(&opts.FastqOut, "fastq-out", false, "Write matched FASTQ records, one output per input.")
	flag.StringVar(&opts.ReadList, "read-list", "", "Write the matched identifiers to this file.")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	stats, err := filter.Run(ctx, opts)
	if err != nil {
		log.Fatalf("cov-filter: %v", err)
	}
	log.Printf("%d identifiers (%d duplicates dropped)", stats.IDs, stats.Duplicates)
	log.Printf("alignments: %d/%d matched", stats.AlignmentsMatched, stats.AlignmentsSeen)
	if stats.ReadsSeen > 0 {
		log.Printf("reads: %d/%d matched", stats.ReadsMatched, stats.ReadsSeen)
	}
	log.Printf("All done")
}
